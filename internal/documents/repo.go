package documents

import (
	"context"
	"time"
)

// Repo defines persistence operations for documents. Status changes go
// through the Claim/Finish/Release conditional updates only.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, userID, documentID string) (Document, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error)
	UpdateDocumentType(ctx context.Context, documentID, documentType string) error
	Delete(ctx context.Context, userID, documentID string) error
	CountByStatus(ctx context.Context, userID string) (map[Status]int, error)

	// ClaimProcessing atomically moves the document from any non-processing
	// status into processing, recording when the run started. A document
	// already in processing yields ErrConflict; a losing concurrent caller
	// fails fast instead of queueing.
	ClaimProcessing(ctx context.Context, documentID string, startedAt time.Time) error

	// FinishProcessing atomically moves the document from processing into the
	// final status and clears the run start marker.
	FinishProcessing(ctx context.Context, documentID string, final Status) error

	// ReleaseStale moves documents stuck in processing since before cutoff to
	// error status and returns their IDs.
	ReleaseStale(ctx context.Context, cutoff time.Time) ([]string, error)
}
