package processing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"docintake-backend/internal/documents"
	"docintake-backend/internal/pipeline"
	"docintake-backend/internal/shared/storage/object/local"
)

const invoiceText = "Invoice Number: INV-12345\nBill To: ACME Corp\nAmount Due: $1,204.50\nDue Date: 2026-09-15\nPayment terms apply.\n"

func newTestService(t *testing.T, stages []pipeline.Stage) (*Service, *documents.MemoryRepo, *MemoryRepo) {
	t.Helper()
	docs := documents.NewMemoryRepo()
	repo := NewMemoryRepo()
	store := local.New(t.TempDir())
	return &Service{Docs: docs, Repo: repo, Store: store, Stages: stages}, docs, repo
}

func defaultStages(t *testing.T) []pipeline.Stage {
	t.Helper()
	stages, err := pipeline.Build([]string{"ocr", "classify", "extract", "summarize"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return stages
}

func seedDocument(t *testing.T, s *Service, docs *documents.MemoryRepo, userID, content string) documents.Document {
	t.Helper()
	ctx := context.Background()
	key, size, mimeType, err := s.Store.Save(ctx, userID, "invoice.txt", strings.NewReader(content))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	doc := documents.Document{
		ID:         "doc-" + userID,
		UserID:     userID,
		FileName:   "invoice.txt",
		MimeType:   mimeType,
		SizeBytes:  size,
		StorageKey: key,
		Status:     documents.StatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := docs.Create(ctx, doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return doc
}

func TestProcessCompletesAndExtractsFields(t *testing.T) {
	svc, docs, _ := newTestService(t, nil)
	svc.Stages = defaultStages(t)
	doc := seedDocument(t, svc, docs, "u1", invoiceText)

	result, err := svc.Process(context.Background(), "u1", doc.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Error != nil {
		t.Fatalf("run error: %v", result.Error)
	}
	if result.Document.Status != documents.StatusCompleted {
		t.Fatalf("status = %s, want completed", result.Document.Status)
	}
	if result.Document.DocumentType != "invoice" {
		t.Fatalf("document_type = %q, want invoice", result.Document.DocumentType)
	}
	if result.Document.ProcessingStartedAt != nil {
		t.Fatal("processing_started_at should be cleared after the run")
	}

	byKey := make(map[string]ExtractedField)
	for _, f := range result.Fields {
		byKey[f.Key] = f
		if f.RunID != result.RunID {
			t.Fatalf("field %s tagged with run %s, want %s", f.Key, f.RunID, result.RunID)
		}
		if f.Validated {
			t.Fatalf("field %s should start unvalidated", f.Key)
		}
	}
	if byKey["invoice_number"].Value != "INV-12345" {
		t.Fatalf("invoice_number = %q", byKey["invoice_number"].Value)
	}
	if !strings.Contains(byKey["ocr_text"].Value, "INV-12345") {
		t.Fatalf("ocr_text field missing the recovered text: %q", byKey["ocr_text"].Value)
	}
	if _, ok := byKey["summary"]; !ok {
		t.Fatal("expected a summary field")
	}

	log, err := svc.Log(context.Background(), "u1", doc.ID)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(log) < 2 || log[0].Action != ActionProcessingStarted || log[len(log)-1].Action != ActionProcessingCompleted {
		t.Fatalf("unexpected log: %+v", log)
	}
}

func TestProcessFailsWhenNoContent(t *testing.T) {
	svc, docs, _ := newTestService(t, defaultStages(t))
	ctx := context.Background()
	doc := documents.Document{
		ID:        "doc-empty",
		UserID:    "u1",
		FileName:  "empty.txt",
		Status:    documents.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := docs.Create(ctx, doc); err != nil {
		t.Fatalf("Create: %v", err)
	}

	result, err := svc.Process(ctx, "u1", doc.ID)
	if err != nil {
		t.Fatalf("Process should not fail the request: %v", err)
	}
	if result.Error == nil {
		t.Fatal("expected a run error")
	}
	if result.Document.Status != documents.StatusError {
		t.Fatalf("status = %s, want error", result.Document.Status)
	}
	if len(result.Fields) != 0 {
		t.Fatalf("expected no fields, got %d", len(result.Fields))
	}

	log, _ := svc.Log(ctx, "u1", doc.ID)
	sawOCRFailure := false
	for _, e := range log {
		if e.Action == StageFailedPrefix+"ocr" {
			sawOCRFailure = true
		}
	}
	if !sawOCRFailure {
		t.Fatalf("expected a stage_failed:ocr entry, log: %+v", log)
	}
}

// failingStage always errors; the run must keep going.
type failingStage struct{ name string }

func (s *failingStage) Name() string { return s.name }
func (s *failingStage) Run(context.Context, pipeline.Input) (pipeline.Output, error) {
	return pipeline.Output{}, errors.New("boom")
}

// panickyStage exercises in-run panic recovery.
type panickyStage struct{}

func (s *panickyStage) Name() string { return "panicky" }
func (s *panickyStage) Run(context.Context, pipeline.Input) (pipeline.Output, error) {
	panic("stage blew up")
}

func TestProcessCompletesDespiteDownstreamFailure(t *testing.T) {
	stages := []pipeline.Stage{
		&pipeline.OCRStage{},
		&failingStage{name: "classify"},
		&pipeline.ExtractStage{},
	}
	svc, docs, _ := newTestService(t, stages)
	doc := seedDocument(t, svc, docs, "u1", invoiceText)

	result, err := svc.Process(context.Background(), "u1", doc.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Error != nil {
		t.Fatalf("run error: %v", result.Error)
	}
	if result.Document.Status != documents.StatusCompleted {
		t.Fatalf("status = %s, want completed despite classify failing", result.Document.Status)
	}
	if len(result.Fields) == 0 {
		t.Fatal("extract should still run after classify fails")
	}

	log, _ := svc.Log(context.Background(), "u1", doc.ID)
	sawFailure := false
	for _, e := range log {
		if e.Action == StageFailedPrefix+"classify" {
			sawFailure = true
			if e.Details != "boom" {
				t.Fatalf("failure details = %q, want the bare stage error", e.Details)
			}
		}
	}
	if !sawFailure {
		t.Fatal("expected a stage_failed:classify log entry")
	}
}

func TestProcessRecoversFromStagePanic(t *testing.T) {
	stages := []pipeline.Stage{&pipeline.OCRStage{}, &panickyStage{}}
	svc, docs, _ := newTestService(t, stages)
	doc := seedDocument(t, svc, docs, "u1", invoiceText)

	result, err := svc.Process(context.Background(), "u1", doc.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Document.Status != documents.StatusCompleted {
		t.Fatalf("status = %s, want completed", result.Document.Status)
	}
}

// fieldClearFailRepo fails the pre-run field cleanup.
type fieldClearFailRepo struct{ *MemoryRepo }

func (r *fieldClearFailRepo) DeleteFieldsByDocument(context.Context, string) (int, error) {
	return 0, errors.New("storage offline")
}

// insertPanicRepo panics while persisting fields, outside any stage.
type insertPanicRepo struct{ *MemoryRepo }

func (r *insertPanicRepo) InsertFields(context.Context, []ExtractedField) error {
	panic("insert blew up")
}

func TestProcessFieldClearFailureEndsRunAsError(t *testing.T) {
	svc, docs, repo := newTestService(t, defaultStages(t))
	svc.Repo = &fieldClearFailRepo{repo}
	doc := seedDocument(t, svc, docs, "u1", invoiceText)
	ctx := context.Background()

	result, err := svc.Process(ctx, "u1", doc.ID)
	if err != nil {
		t.Fatalf("Process should not fail the request: %v", err)
	}
	if result.Error == nil {
		t.Fatal("expected a run error")
	}
	if result.Document.Status != documents.StatusError {
		t.Fatalf("status = %s, want error", result.Document.Status)
	}
	if len(result.Fields) != 0 {
		t.Fatalf("expected no fields, got %d", len(result.Fields))
	}

	log, _ := repo.ListLog(ctx, doc.ID)
	if len(log) == 0 || log[len(log)-1].Action != ActionProcessingFailed {
		t.Fatalf("expected a processing_failed entry, log: %+v", log)
	}

	// The claim must be released so the document can be processed again.
	if err := docs.ClaimProcessing(ctx, doc.ID, time.Now().UTC()); err != nil {
		t.Fatalf("reclaim after failed run: %v", err)
	}
}

func TestProcessRecoversFromPersistencePanic(t *testing.T) {
	svc, docs, repo := newTestService(t, defaultStages(t))
	svc.Repo = &insertPanicRepo{repo}
	doc := seedDocument(t, svc, docs, "u1", invoiceText)
	ctx := context.Background()

	result, err := svc.Process(ctx, "u1", doc.ID)
	if err != nil {
		t.Fatalf("Process should not fail the request: %v", err)
	}
	if result.Error == nil || !strings.Contains(result.Error.Error(), "panic") {
		t.Fatalf("run error = %v, want a panic report", result.Error)
	}
	if result.Document.Status != documents.StatusError {
		t.Fatalf("status = %s, want error", result.Document.Status)
	}

	got, err := docs.GetByID(ctx, "u1", doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != documents.StatusError {
		t.Fatalf("stored status = %s, want error", got.Status)
	}
}

// gateStage blocks the winning run so concurrent callers hit the claim while
// it is still held.
type gateStage struct {
	inner   pipeline.Stage
	release chan struct{}
}

func (s *gateStage) Name() string { return s.inner.Name() }
func (s *gateStage) Run(ctx context.Context, in pipeline.Input) (pipeline.Output, error) {
	<-s.release
	return s.inner.Run(ctx, in)
}

func TestProcessConcurrentExactlyOneWinner(t *testing.T) {
	release := make(chan struct{})
	stages := []pipeline.Stage{&gateStage{inner: &pipeline.OCRStage{}, release: release}}
	svc, docs, _ := newTestService(t, stages)
	doc := seedDocument(t, svc, docs, "u1", invoiceText)

	const callers = 8
	var wg sync.WaitGroup
	outcomes := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Process(context.Background(), "u1", doc.ID)
			outcomes <- err
		}()
	}

	// Wait for every loser to bounce off the claim, then let the winner run.
	for i := 0; i < callers-1; i++ {
		if err := <-outcomes; !errors.Is(err, documents.ErrConflict) {
			t.Fatalf("loser error = %v, want ErrConflict", err)
		}
	}
	close(release)
	if err := <-outcomes; err != nil {
		t.Fatalf("winner error = %v", err)
	}
	wg.Wait()

	got, err := docs.GetByID(context.Background(), "u1", doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != documents.StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
}

func TestReprocessingSupersedesFields(t *testing.T) {
	svc, docs, repo := newTestService(t, defaultStages(t))
	doc := seedDocument(t, svc, docs, "u1", invoiceText)
	ctx := context.Background()

	first, err := svc.Process(ctx, "u1", doc.ID)
	if err != nil {
		t.Fatalf("first Process: %v", err)
	}
	second, err := svc.Process(ctx, "u1", doc.ID)
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if first.RunID == second.RunID {
		t.Fatal("runs should have distinct IDs")
	}

	fields, err := repo.ListFields(ctx, doc.ID)
	if err != nil {
		t.Fatalf("ListFields: %v", err)
	}
	for _, f := range fields {
		if f.RunID != second.RunID {
			t.Fatalf("field %s still tagged with run %s", f.Key, f.RunID)
		}
	}
	if len(fields) != len(second.Fields) {
		t.Fatalf("got %d fields, want %d", len(fields), len(second.Fields))
	}
}

func TestProcessCrossUserIsNotFound(t *testing.T) {
	svc, docs, _ := newTestService(t, defaultStages(t))
	doc := seedDocument(t, svc, docs, "u1", invoiceText)

	_, err := svc.Process(context.Background(), "u2", doc.ID)
	if !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestValidateFieldMarksReviewed(t *testing.T) {
	svc, docs, _ := newTestService(t, defaultStages(t))
	doc := seedDocument(t, svc, docs, "u1", invoiceText)
	ctx := context.Background()

	result, err := svc.Process(ctx, "u1", doc.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(result.Fields) == 0 {
		t.Fatal("no fields to validate")
	}

	field, err := svc.Validate(ctx, "u1", doc.ID, result.Fields[0].ID)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !field.Validated {
		t.Fatal("field should be validated")
	}

	if _, err := svc.Validate(ctx, "u2", doc.ID, result.Fields[0].ID); !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("cross-user validate err = %v, want ErrNotFound", err)
	}
}

func TestUnlockReleasesStuckRun(t *testing.T) {
	svc, docs, _ := newTestService(t, defaultStages(t))
	doc := seedDocument(t, svc, docs, "u1", invoiceText)
	ctx := context.Background()

	if _, err := svc.Unlock(ctx, "u1", doc.ID); !errors.Is(err, documents.ErrConflict) {
		t.Fatalf("unlock of non-processing doc: err = %v, want ErrConflict", err)
	}

	if err := docs.ClaimProcessing(ctx, doc.ID, time.Now().UTC()); err != nil {
		t.Fatalf("ClaimProcessing: %v", err)
	}
	unlocked, err := svc.Unlock(ctx, "u1", doc.ID)
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if unlocked.Status != documents.StatusError {
		t.Fatalf("status = %s, want error", unlocked.Status)
	}
}

func TestJanitorReleasesStaleRuns(t *testing.T) {
	svc, docs, repo := newTestService(t, defaultStages(t))
	doc := seedDocument(t, svc, docs, "u1", invoiceText)
	ctx := context.Background()

	stale := time.Now().UTC().Add(-time.Hour)
	if err := docs.ClaimProcessing(ctx, doc.ID, stale); err != nil {
		t.Fatalf("ClaimProcessing: %v", err)
	}

	j := &Janitor{Docs: docs, Repo: repo, Timeout: 10 * time.Minute}
	j.Sweep(ctx)

	got, err := docs.GetByID(ctx, "u1", doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != documents.StatusError {
		t.Fatalf("status = %s, want error", got.Status)
	}

	log, _ := repo.ListLog(ctx, doc.ID)
	if len(log) != 1 || log[0].Action != ActionProcessingReleased {
		t.Fatalf("unexpected log: %+v", log)
	}

	// Fresh runs stay untouched.
	if err := docs.FinishProcessing(ctx, doc.ID, documents.StatusError); !errors.Is(err, documents.ErrConflict) {
		t.Fatalf("finish after release: err = %v, want ErrConflict", err)
	}
}
