package documents

import "time"

// CreateDocumentRequest registers a document record without a stored file.
type CreateDocumentRequest struct {
	FileName     string `json:"file_name"`
	DocumentType string `json:"document_type"`
}

// UpdateDocumentRequest changes the declared type of a document.
type UpdateDocumentRequest struct {
	DocumentType string `json:"document_type"`
}

// DocumentResponse is the API shape of a document.
type DocumentResponse struct {
	ID                  string     `json:"id"`
	FileName            string     `json:"file_name"`
	MimeType            string     `json:"mime_type,omitempty"`
	SizeBytes           int64      `json:"size_bytes"`
	DocumentType        string     `json:"document_type,omitempty"`
	Status              Status     `json:"status"`
	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty"`
	UploadedAt          time.Time  `json:"uploaded_at"`
}

// ListDocumentsResponse wraps a page of documents.
type ListDocumentsResponse struct {
	Documents []DocumentResponse `json:"documents"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

func toResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		ID:                  doc.ID,
		FileName:            doc.FileName,
		MimeType:            doc.MimeType,
		SizeBytes:           doc.SizeBytes,
		DocumentType:        doc.DocumentType,
		Status:              doc.Status,
		ProcessingStartedAt: doc.ProcessingStartedAt,
		UploadedAt:          doc.CreatedAt,
	}
}

func toResponses(docs []Document) []DocumentResponse {
	out := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toResponse(doc))
	}
	return out
}
