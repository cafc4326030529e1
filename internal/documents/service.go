package documents

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"docintake-backend/internal/shared/storage/object"
	"docintake-backend/internal/shared/telemetry"
)

// Purger removes processing artifacts attached to a document. The in-memory
// repos have no foreign keys, so deletes cascade through this hook.
type Purger interface {
	PurgeDocument(ctx context.Context, documentID string) error
}

// Service holds document business logic.
type Service struct {
	Repo   Repo
	Store  object.ObjectStore
	Purger Purger
}

// MaxUploadBytes bounds multipart uploads.
const MaxUploadBytes = 25 << 20

// MaxDocumentTypeLen bounds the declared document type label.
const MaxDocumentTypeLen = 100

// DefaultDocumentType is assigned when the caller declares no type. The
// classifier overwrites it once a run identifies the document.
const DefaultDocumentType = "unknown"

// Register creates a document record without file content. The record starts
// pending and cannot be processed until content exists.
func (s *Service) Register(ctx context.Context, userID string, req CreateDocumentRequest) (Document, error) {
	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" {
		return Document{}, fmt.Errorf("%w: file_name is required", ErrInvalidInput)
	}
	docType, err := normalizeDocumentType(req.DocumentType)
	if err != nil {
		return Document{}, err
	}
	if docType == "" {
		docType = DefaultDocumentType
	}

	doc := Document{
		ID:           uuid.NewString(),
		UserID:       userID,
		FileName:     fileName,
		DocumentType: docType,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Upload stores file content and creates the document record.
func (s *Service) Upload(ctx context.Context, userID, fileName, documentType string, r io.Reader) (Document, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return Document{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	docType, err := normalizeDocumentType(documentType)
	if err != nil {
		return Document{}, err
	}
	if docType == "" {
		docType = DefaultDocumentType
	}

	storageKey, sizeBytes, mimeType, err := s.Store.Save(ctx, userID, fileName, io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return Document{}, fmt.Errorf("store file: %w", err)
	}
	if sizeBytes > MaxUploadBytes {
		_ = s.Store.Delete(ctx, storageKey)
		return Document{}, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, MaxUploadBytes)
	}

	doc := Document{
		ID:           uuid.NewString(),
		UserID:       userID,
		FileName:     fileName,
		MimeType:     mimeType,
		SizeBytes:    sizeBytes,
		StorageKey:   storageKey,
		DocumentType: docType,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		_ = s.Store.Delete(ctx, storageKey)
		return Document{}, err
	}

	telemetry.Info("document uploaded", map[string]any{
		"documentId": doc.ID,
		"userId":     userID,
		"sizeBytes":  sizeBytes,
		"mimeType":   mimeType,
	})
	return doc, nil
}

// Get returns a single document owned by userID.
func (s *Service) Get(ctx context.Context, userID, documentID string) (Document, error) {
	return s.Repo.GetByID(ctx, userID, documentID)
}

// List returns a page of the user's documents, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// UpdateType changes the declared type of a document.
func (s *Service) UpdateType(ctx context.Context, userID, documentID, documentType string) (Document, error) {
	docType, err := normalizeDocumentType(documentType)
	if err != nil {
		return Document{}, err
	}
	if docType == "" {
		return Document{}, fmt.Errorf("%w: document_type is required", ErrInvalidInput)
	}

	doc, err := s.Repo.GetByID(ctx, userID, documentID)
	if err != nil {
		return Document{}, err
	}
	if err := s.Repo.UpdateDocumentType(ctx, doc.ID, docType); err != nil {
		return Document{}, err
	}
	doc.DocumentType = docType
	return doc, nil
}

// Delete removes the document, its stored file and its processing artifacts.
// A document mid-run cannot be deleted.
func (s *Service) Delete(ctx context.Context, userID, documentID string) error {
	doc, err := s.Repo.GetByID(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if doc.Status == StatusProcessing {
		return fmt.Errorf("%w: document is being processed", ErrConflict)
	}

	if s.Purger != nil {
		if err := s.Purger.PurgeDocument(ctx, doc.ID); err != nil {
			return err
		}
	}
	if err := s.Repo.Delete(ctx, userID, documentID); err != nil {
		return err
	}
	if doc.StorageKey != "" {
		if err := s.Store.Delete(ctx, doc.StorageKey); err != nil {
			telemetry.Warn("failed to delete stored file", map[string]any{
				"documentId": doc.ID,
				"storageKey": doc.StorageKey,
				"error":      err.Error(),
			})
		}
	}
	return nil
}

// normalizeDocumentType accepts any free label up to MaxDocumentTypeLen. An
// empty label stays empty; callers pick the default.
func normalizeDocumentType(documentType string) (string, error) {
	docType := strings.ToLower(strings.TrimSpace(documentType))
	if docType == "" {
		return "", nil
	}
	if len([]rune(docType)) > MaxDocumentTypeLen {
		return "", fmt.Errorf("%w: document_type exceeds %d characters", ErrInvalidInput, MaxDocumentTypeLen)
	}
	return docType, nil
}
