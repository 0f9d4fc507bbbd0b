package memory

import "time"

type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// JobTypeExtract is the only job type the worker consumes.
const JobTypeExtract = "extract"

// DefaultEventType is used when an extracted fact carries no valid event type.
const DefaultEventType = "Other"

// Profile is the identity anchor every other row points at.
type Profile struct {
	ID          string     `json:"id"`
	Name        string     `json:"name,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	VoiceID     string     `json:"voice_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// MediaAsset is one confirmed object in storage.
type MediaAsset struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profile_id"`
	ObjectKey string    `json:"object_key"`
	FileName  string    `json:"file_name"`
	MIMEType  string    `json:"mime_type"`
	Bytes     int64     `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Job is one unit of extraction work.
type Job struct {
	ID           int64      `json:"id"`
	ProfileID    string     `json:"profile_id"`
	MediaAssetID string     `json:"media_asset_id"`
	JobType      string     `json:"job_type"`
	Status       JobStatus  `json:"status"`
	Attempt      int        `json:"attempt"`
	ErrorDetail  *string    `json:"error_detail"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

func (j Job) Terminal() bool {
	return j.Status == JobStatusDone || j.Status == JobStatusFailed
}

// MemoryUnit is one grounded fact extracted from a media asset.
type MemoryUnit struct {
	ID           string    `json:"id"`
	ProfileID    string    `json:"profile_id"`
	MediaAssetID string    `json:"media_asset_id"`
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	Description  *string   `json:"description"`
	EventType    string    `json:"event_type"`
	Places       []string  `json:"places"`
	Dates        []string  `json:"dates"`
	Keywords     []string  `json:"keywords"`
	CreatedAt    time.Time `json:"created_at"`
}

// DerivedKey identifies a unit for idempotent persistence within one asset.
func (m MemoryUnit) DerivedKey() string {
	return DerivedKey(m.MediaAssetID, m.Title)
}

func DerivedKey(mediaAssetID, title string) string {
	return mediaAssetID + ":" + title
}

// MemoryUnitPatch carries the user-editable fields; nil means unchanged.
type MemoryUnitPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Places      *[]string `json:"places,omitempty"`
	Dates       *[]string `json:"dates,omitempty"`
}

func (p MemoryUnitPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Places == nil && p.Dates == nil
}

func (p MemoryUnitPatch) apply(u *MemoryUnit) {
	if p.Title != nil {
		u.Title = *p.Title
	}
	if p.Description != nil {
		d := *p.Description
		u.Description = &d
	}
	if p.Places != nil {
		u.Places = cloneStrings(*p.Places)
	}
	if p.Dates != nil {
		u.Dates = cloneStrings(*p.Dates)
	}
}

// RetrievedMemory is a memory unit joined with its backing asset, used only for ranking.
type RetrievedMemory struct {
	Unit          MemoryUnit
	AssetKey      string
	AssetMIMEType string
}

// SearchQuery is the recall-biased candidate filter. Empty slices disable their clause;
// when both are empty every unit of the profile matches.
type SearchQuery struct {
	Keywords   []string
	EventTypes []string
}
