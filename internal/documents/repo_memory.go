package documents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Document
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Document)}
}

// Create stores a new document.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[doc.ID] = doc
	return nil
}

// GetByID returns a document by ID, scoped to its owner.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.byID[documentID]
	if !ok || doc.UserID != userID {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// ListByUser returns documents for a user, newest first, honoring limit/offset.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	var docs []Document
	for _, doc := range r.byID {
		if doc.UserID == userID {
			docs = append(docs, doc)
		}
	}
	r.mu.RUnlock()

	if len(docs) == 0 || offset >= len(docs) {
		return []Document{}, nil
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})

	end := len(docs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return docs[offset:end], nil
}

// UpdateDocumentType sets the declared type of a document.
func (r *MemoryRepo) UpdateDocumentType(ctx context.Context, documentID, documentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.byID[documentID]
	if !ok {
		return ErrNotFound
	}
	doc.DocumentType = documentType
	r.byID[documentID] = doc
	return nil
}

// Delete removes a document, scoped to its owner.
func (r *MemoryRepo) Delete(ctx context.Context, userID, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.byID[documentID]
	if !ok || doc.UserID != userID {
		return ErrNotFound
	}
	delete(r.byID, documentID)
	return nil
}

// CountByStatus returns per-status document counts for a user.
func (r *MemoryRepo) CountByStatus(ctx context.Context, userID string) (map[Status]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[Status]int)
	for _, doc := range r.byID {
		if doc.UserID == userID {
			counts[doc.Status]++
		}
	}
	return counts, nil
}

// ClaimProcessing atomically enters processing; ErrConflict if already there.
func (r *MemoryRepo) ClaimProcessing(ctx context.Context, documentID string, startedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.byID[documentID]
	if !ok {
		return ErrNotFound
	}
	if !doc.Status.CanStartProcessing() {
		return ErrConflict
	}
	doc.Status = StatusProcessing
	doc.ProcessingStartedAt = &startedAt
	r.byID[documentID] = doc
	return nil
}

// FinishProcessing atomically leaves processing for a terminal status.
func (r *MemoryRepo) FinishProcessing(ctx context.Context, documentID string, final Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if final != StatusCompleted && final != StatusError {
		return ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.byID[documentID]
	if !ok {
		return ErrNotFound
	}
	if doc.Status != StatusProcessing {
		return ErrConflict
	}
	doc.Status = final
	doc.ProcessingStartedAt = nil
	r.byID[documentID] = doc
	return nil
}

// ReleaseStale fails processing runs started before cutoff.
func (r *MemoryRepo) ReleaseStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var released []string
	for id, doc := range r.byID {
		if doc.Status == StatusProcessing && doc.ProcessingStartedAt != nil && doc.ProcessingStartedAt.Before(cutoff) {
			doc.Status = StatusError
			doc.ProcessingStartedAt = nil
			r.byID[id] = doc
			released = append(released, id)
		}
	}
	sort.Strings(released)
	return released, nil
}

var _ Repo = (*MemoryRepo)(nil)
