package processing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"docintake-backend/internal/documents"
	"docintake-backend/internal/pipeline"
	"docintake-backend/internal/shared/metrics"
	"docintake-backend/internal/shared/storage/object"
	"docintake-backend/internal/shared/telemetry"
)

// Service runs the processing pipeline against stored documents.
type Service struct {
	Docs   documents.Repo
	Repo   Repo
	Store  object.ObjectStore
	Stages []pipeline.Stage
}

// RunResult reports the outcome of a processing run. Error holds the stage
// failure that decided a final error status; failed stages that did not stop
// the run appear only in the log.
type RunResult struct {
	Document documents.Document
	Fields   []ExtractedField
	RunID    string
	Error    error
}

// Process claims the document, runs every configured stage in order, persists
// the stage outputs and moves the document to its terminal status. Exactly
// one concurrent caller wins the claim; losers get documents.ErrConflict.
func (s *Service) Process(ctx context.Context, userID, documentID string) (result RunResult, err error) {
	doc, err := s.Docs.GetByID(ctx, userID, documentID)
	if err != nil {
		return RunResult{}, err
	}

	startedAt := time.Now().UTC()
	if err := s.Docs.ClaimProcessing(ctx, doc.ID, startedAt); err != nil {
		return RunResult{}, err
	}

	runID := uuid.NewString()

	// From here the claim is held: any fault, panics included, must still
	// release it into error status and answer with the run outcome.
	defer func() {
		if r := recover(); r != nil {
			s.finish(ctx, doc.ID, runID, documents.StatusError, startedAt, fmt.Sprintf("panic: %v", r))
			result = RunResult{RunID: runID, Error: fmt.Errorf("panic: %v", r)}
			result.Document = s.reload(ctx, userID, documentID, doc, documents.StatusError)
			err = nil
		}
	}()

	metrics.IncRunStarted()
	telemetry.Info("status_transition", map[string]any{
		"documentId": doc.ID,
		"runId":      runID,
		"from":       string(doc.Status),
		"to":         string(documents.StatusProcessing),
	})
	s.appendLog(ctx, doc.ID, ActionProcessingStarted, fmt.Sprintf("run %s", runID))

	if removed, derr := s.Repo.DeleteFieldsByDocument(ctx, doc.ID); derr != nil {
		result.Error = fmt.Errorf("clear previous fields: %w", derr)
	} else if removed > 0 {
		telemetry.Info("superseded previous extraction", map[string]any{
			"documentId": doc.ID,
			"runId":      runID,
			"removed":    removed,
		})
	}

	if result.Error == nil {
		result = s.runStages(ctx, doc, runID)
	}
	result.RunID = runID

	final := documents.StatusError
	detail := "no text recovered"
	if result.Error == nil {
		final = documents.StatusCompleted
		detail = fmt.Sprintf("run %s, %d fields", runID, len(result.Fields))
	} else {
		detail = result.Error.Error()
	}

	if len(result.Fields) > 0 {
		if ierr := s.Repo.InsertFields(ctx, result.Fields); ierr != nil {
			final = documents.StatusError
			detail = "could not persist extracted fields"
			result.Error = ierr
			result.Fields = nil
		}
	}

	s.finish(ctx, doc.ID, runID, final, startedAt, detail)
	result.Document = s.reload(ctx, userID, documentID, doc, final)
	return result, nil
}

// reload fetches the document after the terminal transition, falling back to
// the pre-run snapshot with the final status applied.
func (s *Service) reload(ctx context.Context, userID, documentID string, fallback documents.Document, final documents.Status) documents.Document {
	out, err := s.Docs.GetByID(ctx, userID, documentID)
	if err != nil {
		fallback.Status = final
		return fallback
	}
	return out
}

// runStages executes the pipeline. A stage error is recorded and the run
// moves on; only a missing propagated text decides a final error status.
func (s *Service) runStages(ctx context.Context, doc documents.Document, runID string) RunResult {
	var result RunResult

	in := pipeline.Input{
		FileName: doc.FileName,
		MIMEType: doc.MimeType,
	}
	if doc.StorageKey != "" {
		raw, err := s.readContent(ctx, doc.StorageKey)
		if err != nil {
			telemetry.Warn("could not read stored content", map[string]any{
				"documentId": doc.ID,
				"runId":      runID,
				"error":      err.Error(),
			})
		}
		in.Bytes = raw
	}

	docType := doc.DocumentType
	now := time.Now().UTC()
	for _, stage := range s.Stages {
		out, err := s.runStage(ctx, stage, in)
		if err != nil {
			reason := err.Error()
			var sf *pipeline.StageFailure
			if errors.As(err, &sf) {
				reason = sf.Err.Error()
			}
			metrics.IncStageFailure(stage.Name())
			telemetry.Warn("stage failed", map[string]any{
				"documentId": doc.ID,
				"runId":      runID,
				"stage":      stage.Name(),
				"error":      reason,
			})
			s.appendLog(ctx, doc.ID, StageFailedPrefix+stage.Name(), reason)
			continue
		}

		if out.Text != "" {
			in.Text = out.Text
		}
		if out.DocumentType != "" {
			docType = out.DocumentType
		}
		for _, f := range out.Fields {
			result.Fields = append(result.Fields, ExtractedField{
				ID:         uuid.NewString(),
				DocumentID: doc.ID,
				RunID:      runID,
				Key:        f.Key,
				Value:      f.Value,
				CreatedAt:  now,
			})
		}
	}

	if in.Text == "" {
		result.Fields = nil
		result.Error = errors.New("no text recovered from document")
		return result
	}

	if docType != doc.DocumentType && docType != "" {
		if err := s.Docs.UpdateDocumentType(ctx, doc.ID, docType); err != nil {
			telemetry.Warn("could not update document type", map[string]any{
				"documentId": doc.ID,
				"runId":      runID,
				"error":      err.Error(),
			})
		}
	}
	return result
}

// runStage isolates a single stage so a panic inside one stage is treated as
// a stage failure rather than killing the run. Errors come back as
// *pipeline.StageFailure naming the stage that produced them.
func (s *Service) runStage(ctx context.Context, stage pipeline.Stage, in pipeline.Input) (out pipeline.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &pipeline.StageFailure{Stage: stage.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	out, err = stage.Run(ctx, in)
	if err != nil {
		var sf *pipeline.StageFailure
		if !errors.As(err, &sf) {
			err = &pipeline.StageFailure{Stage: stage.Name(), Err: err}
		}
	}
	return out, err
}

func (s *Service) readContent(ctx context.Context, storageKey string) ([]byte, error) {
	body, err := s.Store.Open(ctx, storageKey)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (s *Service) finish(ctx context.Context, documentID, runID string, final documents.Status, startedAt time.Time, detail string) {
	if err := s.Docs.FinishProcessing(ctx, documentID, final); err != nil {
		telemetry.Error("could not finish processing run", map[string]any{
			"documentId": documentID,
			"runId":      runID,
			"final":      string(final),
			"error":      err.Error(),
		})
	}

	action := ActionProcessingCompleted
	if final == documents.StatusError {
		action = ActionProcessingFailed
		metrics.IncRunFailed()
	} else {
		metrics.IncRunCompleted()
	}
	metrics.ObserveRunDurationMs(float64(time.Since(startedAt).Milliseconds()))

	telemetry.Info("status_transition", map[string]any{
		"documentId": documentID,
		"runId":      runID,
		"from":       string(documents.StatusProcessing),
		"to":         string(final),
		"durationMs": time.Since(startedAt).Milliseconds(),
	})
	s.appendLog(ctx, documentID, action, detail)
}

// Unlock forces a document stuck in processing back to error status.
func (s *Service) Unlock(ctx context.Context, userID, documentID string) (documents.Document, error) {
	doc, err := s.Docs.GetByID(ctx, userID, documentID)
	if err != nil {
		return documents.Document{}, err
	}
	if doc.Status != documents.StatusProcessing {
		return documents.Document{}, fmt.Errorf("%w: document is not processing", documents.ErrConflict)
	}

	if err := s.Docs.FinishProcessing(ctx, doc.ID, documents.StatusError); err != nil {
		return documents.Document{}, err
	}
	s.appendLog(ctx, doc.ID, ActionProcessingReleased, "manually unlocked")
	telemetry.Warn("status_transition", map[string]any{
		"documentId": doc.ID,
		"from":       string(documents.StatusProcessing),
		"to":         string(documents.StatusError),
		"reason":     "manual unlock",
	})
	return s.Docs.GetByID(ctx, userID, documentID)
}

// Fields returns a document's extracted fields, verifying ownership first.
func (s *Service) Fields(ctx context.Context, userID, documentID string) ([]ExtractedField, error) {
	if _, err := s.Docs.GetByID(ctx, userID, documentID); err != nil {
		return nil, err
	}
	return s.Repo.ListFields(ctx, documentID)
}

// Validate marks one extracted field as reviewed.
func (s *Service) Validate(ctx context.Context, userID, documentID, fieldID string) (ExtractedField, error) {
	if _, err := s.Docs.GetByID(ctx, userID, documentID); err != nil {
		return ExtractedField{}, err
	}
	field, err := s.Repo.ValidateField(ctx, documentID, fieldID)
	if err != nil {
		return ExtractedField{}, err
	}
	s.appendLog(ctx, documentID, ActionFieldValidated, field.Key)
	return field, nil
}

// Log returns a document's processing history, oldest first.
func (s *Service) Log(ctx context.Context, userID, documentID string) ([]LogEntry, error) {
	if _, err := s.Docs.GetByID(ctx, userID, documentID); err != nil {
		return nil, err
	}
	return s.Repo.ListLog(ctx, documentID)
}

func (s *Service) appendLog(ctx context.Context, documentID, action, details string) {
	entry := LogEntry{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Action:     action,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Repo.AppendLog(ctx, entry); err != nil {
		telemetry.Error("could not append processing log", map[string]any{
			"documentId": documentID,
			"action":     action,
			"error":      err.Error(),
		})
	}
}
