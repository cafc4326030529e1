package processing

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repo for tests and local runs.
type MemoryRepo struct {
	mu     sync.Mutex
	fields map[string]ExtractedField
	log    []LogEntry
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{fields: make(map[string]ExtractedField)}
}

func (r *MemoryRepo) InsertFields(_ context.Context, fields []ExtractedField) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range fields {
		r.fields[f.ID] = f
	}
	return nil
}

func (r *MemoryRepo) DeleteFieldsByDocument(_ context.Context, documentID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, f := range r.fields {
		if f.DocumentID == documentID {
			delete(r.fields, id)
			removed++
		}
	}
	return removed, nil
}

func (r *MemoryRepo) ListFields(_ context.Context, documentID string) ([]ExtractedField, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ExtractedField
	for _, f := range r.fields {
		if f.DocumentID == documentID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (r *MemoryRepo) ValidateField(_ context.Context, documentID, fieldID string) (ExtractedField, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.fields[fieldID]
	if !ok || f.DocumentID != documentID {
		return ExtractedField{}, ErrNotFound
	}
	f.Validated = true
	r.fields[fieldID] = f
	return f, nil
}

func (r *MemoryRepo) AppendLog(_ context.Context, entry LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, entry)
	return nil
}

func (r *MemoryRepo) ListLog(_ context.Context, documentID string) ([]LogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []LogEntry
	for _, e := range r.log {
		if e.DocumentID == documentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *MemoryRepo) PurgeDocument(_ context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, f := range r.fields {
		if f.DocumentID == documentID {
			delete(r.fields, id)
		}
	}
	kept := r.log[:0]
	for _, e := range r.log {
		if e.DocumentID != documentID {
			kept = append(kept, e)
		}
	}
	r.log = kept
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
