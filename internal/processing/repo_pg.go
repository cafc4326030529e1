package processing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// PGRepo implements Repo on Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) InsertFields(ctx context.Context, fields []ExtractedField) error {
	if len(fields) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`
INSERT INTO extracted_fields (id, document_id, run_id, field_key, field_value, validated, created_at)
VALUES `)
	args := make([]any, 0, len(fields)*7)
	for i, f := range fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 7
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args, f.ID, f.DocumentID, f.RunID, f.Key, f.Value, f.Validated, f.CreatedAt)
	}

	_, err := r.DB.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *PGRepo) DeleteFieldsByDocument(ctx context.Context, documentID string) (int, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM extracted_fields WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

func (r *PGRepo) ListFields(ctx context.Context, documentID string) ([]ExtractedField, error) {
	const query = `
SELECT id, document_id, run_id, field_key, field_value, validated, created_at
FROM extracted_fields
WHERE document_id = $1
ORDER BY created_at ASC, field_key ASC`
	rows, err := r.DB.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExtractedField
	for rows.Next() {
		var f ExtractedField
		if err := rows.Scan(&f.ID, &f.DocumentID, &f.RunID, &f.Key, &f.Value, &f.Validated, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *PGRepo) ValidateField(ctx context.Context, documentID, fieldID string) (ExtractedField, error) {
	const query = `
UPDATE extracted_fields
SET validated = TRUE
WHERE id = $1 AND document_id = $2
RETURNING id, document_id, run_id, field_key, field_value, validated, created_at`
	var f ExtractedField
	err := r.DB.QueryRowContext(ctx, query, fieldID, documentID).
		Scan(&f.ID, &f.DocumentID, &f.RunID, &f.Key, &f.Value, &f.Validated, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ExtractedField{}, ErrNotFound
		}
		return ExtractedField{}, err
	}
	return f, nil
}

func (r *PGRepo) AppendLog(ctx context.Context, entry LogEntry) error {
	const query = `
INSERT INTO processing_log (id, document_id, action, details, created_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.DB.ExecContext(ctx, query, entry.ID, entry.DocumentID, entry.Action, entry.Details, entry.CreatedAt)
	return err
}

func (r *PGRepo) ListLog(ctx context.Context, documentID string) ([]LogEntry, error) {
	const query = `
SELECT id, document_id, action, details, created_at
FROM processing_log
WHERE document_id = $1
ORDER BY created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PurgeDocument exists for parity with the in-memory repo; in Postgres the
// foreign keys cascade on document delete, so this is a no-op safety net.
func (r *PGRepo) PurgeDocument(ctx context.Context, documentID string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM extracted_fields WHERE document_id = $1`, documentID); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx, `DELETE FROM processing_log WHERE document_id = $1`, documentID)
	return err
}

var _ Repo = (*PGRepo)(nil)
