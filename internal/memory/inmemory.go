package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is an in-process record store for local/dev use and tests.
// Slices keep insertion order, which stands in for the database's natural order.
type InMemoryStore struct {
	mu        sync.RWMutex
	profiles  []Profile
	assets    []MediaAsset
	jobs      []Job
	units     []MemoryUnit
	nextJobID int64
	now       func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{now: func() time.Time { return time.Now().UTC() }}
}

func (s *InMemoryStore) CreateProfile(_ context.Context, p Profile) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	for _, existing := range s.profiles {
		if existing.ID == p.ID {
			return existing, nil
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.profiles = append(s.profiles, p)
	return p, nil
}

func (s *InMemoryStore) GetProfile(_ context.Context, id string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return Profile{}, ErrNotFound
}

func (s *InMemoryStore) FindProfileByName(_ context.Context, name string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.Name != "" && p.Name == name {
			return p, nil
		}
	}
	return Profile{}, ErrNotFound
}

func (s *InMemoryStore) UpdateProfileVoice(_ context.Context, id, voiceID string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.profiles {
		if s.profiles[i].ID == id {
			s.profiles[i].VoiceID = voiceID
			return s.profiles[i], nil
		}
	}
	return Profile{}, ErrNotFound
}

func (s *InMemoryStore) EnsureMediaAsset(_ context.Context, a MediaAsset) (MediaAsset, bool, error) {
	if strings.TrimSpace(a.ProfileID) == "" {
		return MediaAsset{}, false, ErrMissingProfile
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assets {
		if existing.ProfileID == a.ProfileID && existing.ObjectKey == a.ObjectKey {
			return existing, false, nil
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	s.assets = append(s.assets, a)
	return a, true, nil
}

func (s *InMemoryStore) GetMediaAsset(_ context.Context, id string) (MediaAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assets {
		if a.ID == id {
			return a, nil
		}
	}
	return MediaAsset{}, ErrNotFound
}

func (s *InMemoryStore) ListMediaAssets(_ context.Context, profileID string) ([]MediaAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MediaAsset, 0)
	for i := len(s.assets) - 1; i >= 0; i-- {
		if s.assets[i].ProfileID == profileID {
			out = append(out, s.assets[i])
		}
	}
	return out, nil
}

func (s *InMemoryStore) EnsureJob(_ context.Context, j Job) (Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.JobType == "" {
		j.JobType = JobTypeExtract
	}
	for _, existing := range s.jobs {
		if existing.MediaAssetID == j.MediaAssetID && existing.JobType == j.JobType {
			return cloneJob(existing), false, nil
		}
	}
	s.nextJobID++
	j.ID = s.nextJobID
	j.Status = JobStatusQueued
	j.Attempt = 0
	j.ErrorDetail = nil
	j.StartedAt = nil
	j.FinishedAt = nil
	if j.CreatedAt.IsZero() {
		j.CreatedAt = s.now()
	}
	s.jobs = append(s.jobs, j)
	return cloneJob(j), true, nil
}

func (s *InMemoryStore) GetJob(_ context.Context, id int64) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.jobIndex(id); i >= 0 {
		return cloneJob(s.jobs[i]), nil
	}
	return Job{}, ErrNotFound
}

func (s *InMemoryStore) ListJobs(_ context.Context, profileID string) ([]Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, 0)
	for i := len(s.jobs) - 1; i >= 0; i-- {
		if s.jobs[i].ProfileID == profileID {
			out = append(out, cloneJob(s.jobs[i]))
		}
	}
	return out, nil
}

func (s *InMemoryStore) NextQueuedJob(_ context.Context, jobType string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// jobs is ordered by ascending id.
	for _, j := range s.jobs {
		if j.JobType == jobType && j.Status == JobStatusQueued {
			return cloneJob(j), nil
		}
	}
	return Job{}, ErrNotFound
}

func (s *InMemoryStore) ClaimJob(_ context.Context, id int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.jobIndex(id)
	if i < 0 || s.jobs[i].Status != JobStatusQueued {
		return false, nil
	}
	started := now.UTC()
	s.jobs[i].Status = JobStatusRunning
	s.jobs[i].Attempt++
	s.jobs[i].StartedAt = &started
	return true, nil
}

func (s *InMemoryStore) FinishJob(_ context.Context, id int64, status JobStatus, detail string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.jobIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	if s.jobs[i].Status != JobStatusRunning {
		return ErrJobNotRunning
	}
	finished := now.UTC()
	s.jobs[i].Status = status
	s.jobs[i].FinishedAt = &finished
	s.jobs[i].ErrorDetail = nil
	if detail != "" {
		d := detail
		s.jobs[i].ErrorDetail = &d
	}
	return nil
}

func (s *InMemoryStore) ListMemoryUnits(_ context.Context, mediaAssetID string) ([]MemoryUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MemoryUnit, 0)
	for _, u := range s.units {
		if u.MediaAssetID == mediaAssetID {
			out = append(out, cloneUnit(u))
		}
	}
	return out, nil
}

func (s *InMemoryStore) InsertMemoryUnits(_ context.Context, units []MemoryUnit) ([]MemoryUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MemoryUnit, 0, len(units))
	for _, u := range units {
		u = cloneUnit(u)
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		if u.CreatedAt.IsZero() {
			u.CreatedAt = s.now()
		}
		s.units = append(s.units, u)
		out = append(out, cloneUnit(u))
	}
	return out, nil
}

func (s *InMemoryStore) UpdateMemoryUnits(_ context.Context, mediaAssetID string, patch MemoryUnitPatch) ([]MemoryUnit, error) {
	if patch.Empty() {
		return nil, ErrEmptyPatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MemoryUnit, 0)
	for i := range s.units {
		if s.units[i].MediaAssetID != mediaAssetID {
			continue
		}
		patch.apply(&s.units[i])
		out = append(out, cloneUnit(s.units[i]))
	}
	return out, nil
}

func (s *InMemoryStore) ProfileKeywords(_ context.Context, profileID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, u := range s.units {
		if u.ProfileID == profileID {
			out = appendDistinct(out, seen, u.Keywords)
		}
	}
	return out, nil
}

func (s *InMemoryStore) SearchMemoryUnits(_ context.Context, profileID string, q SearchQuery) ([]RetrievedMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RetrievedMemory, 0)
	for _, u := range s.units {
		if u.ProfileID != profileID || !matchesQuery(u, q) {
			continue
		}
		rm := RetrievedMemory{Unit: cloneUnit(u)}
		for _, a := range s.assets {
			if a.ID == u.MediaAssetID {
				rm.AssetKey = a.ObjectKey
				rm.AssetMIMEType = a.MIMEType
				break
			}
		}
		out = append(out, rm)
	}
	return out, nil
}

func (s *InMemoryStore) Ping(context.Context) error { return nil }

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) jobIndex(id int64) int {
	for i := range s.jobs {
		if s.jobs[i].ID == id {
			return i
		}
	}
	return -1
}

// matchesQuery mirrors the SQL filter: ILIKE on text fields, exact array overlap on
// keywords, ILIKE on event type.
func matchesQuery(u MemoryUnit, q SearchQuery) bool {
	if len(q.Keywords) == 0 && len(q.EventTypes) == 0 {
		return true
	}
	title := strings.ToLower(u.Title)
	summary := strings.ToLower(u.Summary)
	description := ""
	if u.Description != nil {
		description = strings.ToLower(*u.Description)
	}
	for _, kw := range q.Keywords {
		needle := strings.ToLower(kw)
		if strings.Contains(title, needle) || strings.Contains(summary, needle) || strings.Contains(description, needle) {
			return true
		}
		for _, own := range u.Keywords {
			if own == kw {
				return true
			}
		}
	}
	eventType := strings.ToLower(u.EventType)
	for _, et := range q.EventTypes {
		if strings.Contains(eventType, strings.ToLower(et)) {
			return true
		}
	}
	return false
}

func cloneJob(j Job) Job {
	if j.ErrorDetail != nil {
		d := *j.ErrorDetail
		j.ErrorDetail = &d
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		j.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		j.FinishedAt = &t
	}
	return j
}

func cloneUnit(u MemoryUnit) MemoryUnit {
	u.Places = cloneStrings(u.Places)
	u.Dates = cloneStrings(u.Dates)
	u.Keywords = cloneStrings(u.Keywords)
	if u.Description != nil {
		d := *u.Description
		u.Description = &d
	}
	return u
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// appendDistinct adds trimmed, non-empty keywords not yet seen case-insensitively.
func appendDistinct(out []string, seen map[string]struct{}, keywords []string) []string {
	for _, kw := range keywords {
		cleaned := strings.TrimSpace(kw)
		if cleaned == "" {
			continue
		}
		key := strings.ToLower(cleaned)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, cleaned)
	}
	return out
}
