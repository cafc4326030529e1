package processing

import (
	"context"
	"errors"
)

var (
	// ErrNotFound covers fields and log entries that do not exist.
	ErrNotFound = errors.New("processing: not found")
)

// Repo persists extracted fields and the processing log.
type Repo interface {
	// InsertFields stores a batch of fields from one run.
	InsertFields(ctx context.Context, fields []ExtractedField) error
	// DeleteFieldsByDocument removes all fields for a document. Returns the
	// number removed.
	DeleteFieldsByDocument(ctx context.Context, documentID string) (int, error)
	// ListFields returns a document's fields ordered by creation.
	ListFields(ctx context.Context, documentID string) ([]ExtractedField, error)
	// ValidateField marks one field as reviewed.
	ValidateField(ctx context.Context, documentID, fieldID string) (ExtractedField, error)

	// AppendLog records a processing event.
	AppendLog(ctx context.Context, entry LogEntry) error
	// ListLog returns a document's log, oldest first.
	ListLog(ctx context.Context, documentID string) ([]LogEntry, error)

	// PurgeDocument removes all fields and log entries for a document.
	PurgeDocument(ctx context.Context, documentID string) error
}
