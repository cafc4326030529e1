package pipeline

import (
	"context"
	"fmt"
)

// Input carries the document payload and the text produced so far. Stages
// downstream of OCR read Text; OCR itself reads Bytes.
type Input struct {
	FileName string
	MIMEType string
	Bytes    []byte
	Text     string
}

// Field is a single extracted key/value pair.
type Field struct {
	Key   string
	Value string
}

// Output is what a stage contributes to the run. A non-empty Text replaces
// the propagated text for downstream stages; DocumentType and Fields are
// persisted by the orchestrator.
type Output struct {
	Text         string
	DocumentType string
	Fields       []Field
}

// Stage is one step of a processing run.
type Stage interface {
	Name() string
	Run(ctx context.Context, in Input) (Output, error)
}

// StageFailure reports a stage that failed without aborting the run.
type StageFailure struct {
	Stage string
	Err   error
}

func (f *StageFailure) Error() string {
	return fmt.Sprintf("stage %s: %v", f.Stage, f.Err)
}

func (f *StageFailure) Unwrap() error {
	return f.Err
}
