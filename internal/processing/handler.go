package processing

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docintake-backend/internal/documents"
	"docintake-backend/internal/shared/server/middleware"
	"docintake-backend/internal/shared/server/respond"
)

// Handler exposes processing routes.
type Handler struct {
	Service *Service
}

// ProcessResponse reports a finished run. Error carries the reason when the
// run ended in error status; the request itself still succeeds.
type ProcessResponse struct {
	Document FieldsDocument   `json:"document"`
	RunID    string           `json:"run_id"`
	Fields   []ExtractedField `json:"fields"`
	Error    string           `json:"error,omitempty"`
}

// FieldsDocument is the document summary embedded in processing responses.
type FieldsDocument struct {
	ID           string           `json:"id"`
	FileName     string           `json:"file_name"`
	DocumentType string           `json:"document_type,omitempty"`
	Status       documents.Status `json:"status"`
}

// RegisterRoutes mounts processing routes under rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents/:id/process", h.process)
	rg.GET("/documents/:id/data", h.fields)
	rg.POST("/documents/:id/data/:fieldId/validate", h.validate)
	rg.POST("/documents/:id/unlock", h.unlock)
	rg.GET("/documents/:id/log", h.log)
}

func (h *Handler) process(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	result, err := h.Service.Process(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeProcessingError(c, err)
		return
	}

	resp := ProcessResponse{
		Document: toFieldsDocument(result.Document),
		RunID:    result.RunID,
		Fields:   result.Fields,
	}
	if resp.Fields == nil {
		resp.Fields = []ExtractedField{}
	}
	if result.Error != nil {
		resp.Error = result.Error.Error()
	}
	respond.OK(c, resp)
}

func (h *Handler) fields(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	fields, err := h.Service.Fields(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeProcessingError(c, err)
		return
	}
	if fields == nil {
		fields = []ExtractedField{}
	}
	respond.OK(c, gin.H{"fields": fields})
}

func (h *Handler) validate(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	field, err := h.Service.Validate(c.Request.Context(), userID, c.Param("id"), c.Param("fieldId"))
	if err != nil {
		writeProcessingError(c, err)
		return
	}
	respond.OK(c, field)
}

func (h *Handler) unlock(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	doc, err := h.Service.Unlock(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeProcessingError(c, err)
		return
	}
	respond.OK(c, toFieldsDocument(doc))
}

func (h *Handler) log(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	entries, err := h.Service.Log(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeProcessingError(c, err)
		return
	}
	if entries == nil {
		entries = []LogEntry{}
	}
	respond.OK(c, gin.H{"log": entries})
}

func toFieldsDocument(doc documents.Document) FieldsDocument {
	return FieldsDocument{
		ID:           doc.ID,
		FileName:     doc.FileName,
		DocumentType: doc.DocumentType,
		Status:       doc.Status,
	}
}

func writeProcessingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, documents.ErrNotFound), errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "not found", nil)
	case errors.Is(err, documents.ErrConflict):
		respond.Error(c, http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, documents.ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}
