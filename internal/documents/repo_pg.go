package documents

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres. Mutual exclusion for status changes
// relies on conditional UPDATEs rather than row locks.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, user_id, file_name, mime_type, size_bytes, storage_key, document_type, status, processing_started_at, created_at`

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    user_id,
    file_name,
    mime_type,
    size_bytes,
    storage_key,
    document_type,
    status,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	status := doc.Status
	if status == "" {
		status = StatusPending
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.UserID,
		doc.FileName,
		nullableString(doc.MimeType),
		doc.SizeBytes,
		nullableString(doc.StorageKey),
		nullableString(doc.DocumentType),
		string(status),
		doc.CreatedAt,
	)
	return err
}

// GetByID fetches a document by ID, scoped to its owner.
func (r *PGRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	const query = `
SELECT ` + documentColumns + `
FROM documents
WHERE user_id = $1 AND id = $2
LIMIT 1`
	row := r.DB.QueryRowContext(ctx, query, userID, documentID)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// ListByUser lists documents ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT ` + documentColumns + `
FROM documents
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// UpdateDocumentType sets the declared type of a document.
func (r *PGRepo) UpdateDocumentType(ctx context.Context, documentID, documentType string) error {
	const query = `
UPDATE documents
SET document_type = $1
WHERE id = $2`
	res, err := r.DB.ExecContext(ctx, query, nullableString(documentType), documentID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a document; extracted fields and log entries cascade.
func (r *PGRepo) Delete(ctx context.Context, userID, documentID string) error {
	const query = `
DELETE FROM documents
WHERE user_id = $1 AND id = $2`
	res, err := r.DB.ExecContext(ctx, query, userID, documentID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus returns per-status document counts for a user.
func (r *PGRepo) CountByStatus(ctx context.Context, userID string) (map[Status]int, error) {
	const query = `
SELECT status, COUNT(*)
FROM documents
WHERE user_id = $1
GROUP BY status`

	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}

// ClaimProcessing performs the compare-and-swap into processing status.
func (r *PGRepo) ClaimProcessing(ctx context.Context, documentID string, startedAt time.Time) error {
	const query = `
UPDATE documents
SET status = $1, processing_started_at = $2
WHERE id = $3 AND status <> $1`
	res, err := r.DB.ExecContext(ctx, query, string(StatusProcessing), startedAt, documentID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 1 {
		return nil
	}

	// Zero rows means either a live run holds the status or the document is
	// gone; distinguish so callers can answer 409 vs 404.
	var exists bool
	if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, documentID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

// FinishProcessing performs the compare-and-swap out of processing status.
func (r *PGRepo) FinishProcessing(ctx context.Context, documentID string, final Status) error {
	if final != StatusCompleted && final != StatusError {
		return ErrInvalidInput
	}
	const query = `
UPDATE documents
SET status = $1, processing_started_at = NULL
WHERE id = $2 AND status = $3`
	res, err := r.DB.ExecContext(ctx, query, string(final), documentID, string(StatusProcessing))
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// ReleaseStale fails processing runs started before cutoff.
func (r *PGRepo) ReleaseStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	const query = `
UPDATE documents
SET status = $1, processing_started_at = NULL
WHERE status = $2 AND processing_started_at < $3
RETURNING id`
	rows, err := r.DB.QueryContext(ctx, query, string(StatusError), string(StatusProcessing), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var released []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		released = append(released, id)
	}
	return released, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var mimeType sql.NullString
	var storageKey sql.NullString
	var documentType sql.NullString
	var status string
	var startedAt sql.NullTime
	err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.FileName,
		&mimeType,
		&doc.SizeBytes,
		&storageKey,
		&documentType,
		&status,
		&startedAt,
		&doc.CreatedAt,
	)
	if err != nil {
		return Document{}, err
	}
	if mimeType.Valid {
		doc.MimeType = mimeType.String
	}
	if storageKey.Valid {
		doc.StorageKey = storageKey.String
	}
	if documentType.Valid {
		doc.DocumentType = documentType.String
	}
	doc.Status = Status(status)
	if startedAt.Valid {
		t := startedAt.Time
		doc.ProcessingStartedAt = &t
	}
	return doc, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ Repo = (*PGRepo)(nil)
