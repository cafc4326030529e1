package documents

import "time"

// Status is a document's lifecycle state. It is the single source of truth
// for pipeline progress; nothing infers progress from extracted fields.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Valid reports whether s is one of the four defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusError:
		return true
	}
	return false
}

// CanStartProcessing reports whether a processing run may begin from s.
// Every status except processing is re-entrant; a live run is never queued behind.
func (s Status) CanStartProcessing() bool {
	return s.Valid() && s != StatusProcessing
}

// Document represents an uploaded document owned by a user.
type Document struct {
	ID                  string
	UserID              string
	FileName            string
	MimeType            string
	SizeBytes           int64
	StorageKey          string
	DocumentType        string
	Status              Status
	ProcessingStartedAt *time.Time
	CreatedAt           time.Time
}
