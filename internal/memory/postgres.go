package memory

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/KhushM7/UncTube/internal/logging"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// PostgresStore persists profiles, assets, jobs and memory units in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string, runMigrations bool) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if runMigrations {
		if err := migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate applies the embedded schema migrations and closes its connection.
func Migrate(ctx context.Context, databaseURL string) error {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	return migrate(ctx, pool)
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(logging.NewGooseLoggerFromCtx(ctx))
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const profileColumns = `id, name, date_of_birth, voice_id, created_at`

func scanProfile(row rowScanner) (Profile, error) {
	var p Profile
	if err := row.Scan(&p.ID, &p.Name, &p.DateOfBirth, &p.VoiceID, &p.CreatedAt); err != nil {
		return Profile{}, notFound(err)
	}
	return p, nil
}

func (s *PostgresStore) CreateProfile(ctx context.Context, p Profile) (Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	created, err := scanProfile(s.pool.QueryRow(ctx,
		`INSERT INTO profiles (id, name, date_of_birth, voice_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING
		 RETURNING `+profileColumns,
		p.ID, p.Name, p.DateOfBirth, p.VoiceID, p.CreatedAt,
	))
	if errors.Is(err, ErrNotFound) {
		return s.GetProfile(ctx, p.ID)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("create profile: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, id string) (Profile, error) {
	return scanProfile(s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id=$1`, id))
}

func (s *PostgresStore) FindProfileByName(ctx context.Context, name string) (Profile, error) {
	if strings.TrimSpace(name) == "" {
		return Profile{}, ErrNotFound
	}
	return scanProfile(s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE name=$1 ORDER BY created_at LIMIT 1`, name))
}

func (s *PostgresStore) UpdateProfileVoice(ctx context.Context, id, voiceID string) (Profile, error) {
	return scanProfile(s.pool.QueryRow(ctx,
		`UPDATE profiles SET voice_id=$2 WHERE id=$1 RETURNING `+profileColumns, id, voiceID))
}

const assetColumns = `id, profile_id, object_key, file_name, mime_type, bytes, created_at`

func scanAsset(row rowScanner) (MediaAsset, error) {
	var a MediaAsset
	if err := row.Scan(&a.ID, &a.ProfileID, &a.ObjectKey, &a.FileName, &a.MIMEType, &a.Bytes, &a.CreatedAt); err != nil {
		return MediaAsset{}, notFound(err)
	}
	return a, nil
}

func (s *PostgresStore) EnsureMediaAsset(ctx context.Context, a MediaAsset) (MediaAsset, bool, error) {
	if strings.TrimSpace(a.ProfileID) == "" {
		return MediaAsset{}, false, ErrMissingProfile
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	inserted, err := scanAsset(s.pool.QueryRow(ctx,
		`INSERT INTO media_assets (id, profile_id, object_key, file_name, mime_type, bytes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT DO NOTHING
		 RETURNING `+assetColumns,
		a.ID, a.ProfileID, a.ObjectKey, a.FileName, a.MIMEType, a.Bytes, a.CreatedAt,
	))
	if err == nil {
		return inserted, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return MediaAsset{}, false, fmt.Errorf("insert media asset: %w", err)
	}
	existing, err := scanAsset(s.pool.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM media_assets WHERE profile_id=$1 AND object_key=$2`,
		a.ProfileID, a.ObjectKey))
	if err != nil {
		return MediaAsset{}, false, fmt.Errorf("lookup media asset: %w", err)
	}
	return existing, false, nil
}

func (s *PostgresStore) GetMediaAsset(ctx context.Context, id string) (MediaAsset, error) {
	return scanAsset(s.pool.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM media_assets WHERE id=$1`, id))
}

func (s *PostgresStore) ListMediaAssets(ctx context.Context, profileID string) ([]MediaAsset, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+assetColumns+` FROM media_assets WHERE profile_id=$1 ORDER BY created_at DESC, id DESC`,
		profileID)
	if err != nil {
		return nil, fmt.Errorf("query media assets: %w", err)
	}
	defer rows.Close()

	out := make([]MediaAsset, 0)
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media asset: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media assets: %w", err)
	}
	return out, nil
}

const jobColumns = `id, profile_id, media_asset_id, job_type, status, attempt, error_detail, created_at, started_at, finished_at`

func scanJob(row rowScanner) (Job, error) {
	var (
		j      Job
		status string
	)
	if err := row.Scan(&j.ID, &j.ProfileID, &j.MediaAssetID, &j.JobType, &status, &j.Attempt,
		&j.ErrorDetail, &j.CreatedAt, &j.StartedAt, &j.FinishedAt); err != nil {
		return Job{}, notFound(err)
	}
	j.Status = JobStatus(status)
	return j, nil
}

func (s *PostgresStore) EnsureJob(ctx context.Context, j Job) (Job, bool, error) {
	if j.JobType == "" {
		j.JobType = JobTypeExtract
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	inserted, err := scanJob(s.pool.QueryRow(ctx,
		`INSERT INTO jobs (profile_id, media_asset_id, job_type, status, attempt, created_at)
		 VALUES ($1, $2, $3, 'queued', 0, $4)
		 ON CONFLICT (media_asset_id, job_type) DO NOTHING
		 RETURNING `+jobColumns,
		j.ProfileID, j.MediaAssetID, j.JobType, j.CreatedAt,
	))
	if err == nil {
		return inserted, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Job{}, false, fmt.Errorf("insert job: %w", err)
	}
	existing, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE media_asset_id=$1 AND job_type=$2`,
		j.MediaAssetID, j.JobType))
	if err != nil {
		return Job{}, false, fmt.Errorf("lookup job: %w", err)
	}
	return existing, false, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id int64) (Job, error) {
	return scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=$1`, id))
}

func (s *PostgresStore) ListJobs(ctx context.Context, profileID string) ([]Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE profile_id=$1 ORDER BY created_at DESC, id DESC`,
		profileID)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	out := make([]Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) NextQueuedJob(ctx context.Context, jobType string) (Job, error) {
	return scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE job_type=$1 AND status='queued' ORDER BY id ASC LIMIT 1`,
		jobType))
}

// ClaimJob is a conditional update; concurrent claimers race on the status predicate
// and only one observes an affected row.
func (s *PostgresStore) ClaimJob(ctx context.Context, id int64, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status='running', attempt=attempt+1, started_at=$2
		 WHERE id=$1 AND status='queued'`,
		id, now.UTC())
	if err != nil {
		return false, fmt.Errorf("claim job %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) FinishJob(ctx context.Context, id int64, status JobStatus, detail string, now time.Time) error {
	var errorDetail *string
	if detail != "" {
		errorDetail = &detail
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status=$2, error_detail=$3, finished_at=$4
		 WHERE id=$1 AND status='running'`,
		id, string(status), errorDetail, now.UTC())
	if err != nil {
		return fmt.Errorf("finish job %d: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := s.GetJob(ctx, id); err != nil {
		return err
	}
	return ErrJobNotRunning
}

const unitColumns = `id, profile_id, media_asset_id, title, summary, description, event_type, places, dates, keywords, created_at`

func scanUnit(row rowScanner, extra ...any) (MemoryUnit, error) {
	var u MemoryUnit
	dest := []any{&u.ID, &u.ProfileID, &u.MediaAssetID, &u.Title, &u.Summary, &u.Description,
		&u.EventType, &u.Places, &u.Dates, &u.Keywords, &u.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return MemoryUnit{}, notFound(err)
	}
	u.Places = cloneStrings(u.Places)
	u.Dates = cloneStrings(u.Dates)
	u.Keywords = cloneStrings(u.Keywords)
	return u, nil
}

func collectUnits(rows pgx.Rows) ([]MemoryUnit, error) {
	defer rows.Close()
	out := make([]MemoryUnit, 0)
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory unit: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory units: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListMemoryUnits(ctx context.Context, mediaAssetID string) ([]MemoryUnit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+unitColumns+` FROM memory_units WHERE media_asset_id=$1 ORDER BY created_at, id`,
		mediaAssetID)
	if err != nil {
		return nil, fmt.Errorf("query memory units: %w", err)
	}
	return collectUnits(rows)
}

func (s *PostgresStore) InsertMemoryUnits(ctx context.Context, units []MemoryUnit) ([]MemoryUnit, error) {
	if len(units) == 0 {
		return []MemoryUnit{}, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin insert memory units: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	out := make([]MemoryUnit, 0, len(units))
	for _, u := range units {
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		if u.CreatedAt.IsZero() {
			u.CreatedAt = time.Now().UTC()
		}
		inserted, err := scanUnit(tx.QueryRow(ctx,
			`INSERT INTO memory_units (id, profile_id, media_asset_id, title, summary, description,
			                           event_type, places, dates, keywords, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 RETURNING `+unitColumns,
			u.ID, u.ProfileID, u.MediaAssetID, u.Title, u.Summary, u.Description, u.EventType,
			cloneStrings(u.Places), cloneStrings(u.Dates), cloneStrings(u.Keywords), u.CreatedAt,
		))
		if err != nil {
			return nil, fmt.Errorf("insert memory unit %q: %w", u.Title, err)
		}
		out = append(out, inserted)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit memory units: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateMemoryUnits(ctx context.Context, mediaAssetID string, patch MemoryUnitPatch) ([]MemoryUnit, error) {
	if patch.Empty() {
		return nil, ErrEmptyPatch
	}
	args := []any{mediaAssetID}
	sets := make([]string, 0, 4)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Places != nil {
		add("places", cloneStrings(*patch.Places))
	}
	if patch.Dates != nil {
		add("dates", cloneStrings(*patch.Dates))
	}

	rows, err := s.pool.Query(ctx,
		`WITH updated AS (
			UPDATE memory_units SET `+strings.Join(sets, ", ")+`
			WHERE media_asset_id=$1
			RETURNING `+unitColumns+`
		)
		SELECT `+unitColumns+` FROM updated ORDER BY created_at, id`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("update memory units: %w", err)
	}
	return collectUnits(rows)
}

func (s *PostgresStore) ProfileKeywords(ctx context.Context, profileID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT keywords FROM memory_units WHERE profile_id=$1 ORDER BY created_at, id`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query profile keywords: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for rows.Next() {
		var keywords []string
		if err := rows.Scan(&keywords); err != nil {
			return nil, fmt.Errorf("scan keywords: %w", err)
		}
		out = appendDistinct(out, seen, keywords)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keywords: %w", err)
	}
	return out, nil
}

// SearchMemoryUnits runs a single OR over text ILIKE, keyword overlap and event type ILIKE.
func (s *PostgresStore) SearchMemoryUnits(ctx context.Context, profileID string, q SearchQuery) ([]RetrievedMemory, error) {
	keywords := cloneStrings(q.Keywords)
	patterns := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		patterns = append(patterns, "%"+escapeLike(kw)+"%")
	}
	eventPatterns := make([]string, 0, len(q.EventTypes))
	for _, et := range q.EventTypes {
		eventPatterns = append(eventPatterns, "%"+escapeLike(et)+"%")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT mu.id, mu.profile_id, mu.media_asset_id, mu.title, mu.summary, mu.description,
		        mu.event_type, mu.places, mu.dates, mu.keywords, mu.created_at,
		        COALESCE(ma.object_key, ''), COALESCE(ma.mime_type, '')
		 FROM memory_units mu
		 LEFT JOIN media_assets ma ON ma.id = mu.media_asset_id
		 WHERE mu.profile_id = $1 AND (
		       (cardinality($2::text[]) = 0 AND cardinality($4::text[]) = 0)
		       OR mu.title ILIKE ANY($2::text[])
		       OR mu.summary ILIKE ANY($2::text[])
		       OR COALESCE(mu.description, '') ILIKE ANY($2::text[])
		       OR mu.keywords && $3::text[]
		       OR mu.event_type ILIKE ANY($4::text[])
		 )
		 ORDER BY mu.created_at, mu.id`,
		profileID, patterns, keywords, eventPatterns,
	)
	if err != nil {
		return nil, fmt.Errorf("search memory units: %w", err)
	}
	defer rows.Close()

	out := make([]RetrievedMemory, 0)
	for rows.Next() {
		var rm RetrievedMemory
		u, err := scanUnit(rows, &rm.AssetKey, &rm.AssetMIMEType)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		rm.Unit = u
		out = append(out, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
