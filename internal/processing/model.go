package processing

import "time"

// ExtractedField is one key/value pair produced by a processing run.
type ExtractedField struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	RunID      string    `json:"run_id"`
	Key        string    `json:"field_key"`
	Value      string    `json:"field_value"`
	Validated  bool      `json:"validated"`
	CreatedAt  time.Time `json:"created_at"`
}

// LogEntry records one event in a document's processing history.
type LogEntry struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Action     string    `json:"action"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Log actions. Stage failures use the stage_failed prefix followed by the
// stage name, e.g. "stage_failed:classify".
const (
	ActionProcessingStarted   = "processing_started"
	ActionProcessingCompleted = "processing_completed"
	ActionProcessingFailed    = "processing_failed"
	ActionProcessingReleased  = "processing_released"
	ActionFieldValidated      = "field_validated"
	StageFailedPrefix         = "stage_failed:"
)
