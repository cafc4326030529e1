package bootstrap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"docintake-backend/internal/shared/config"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Config{
		Env:               "dev",
		ObjectStoreType:   "local",
		LocalStoreDir:     t.TempDir(),
		AccessTokenTTL:    time.Hour,
		RefreshTokenTTL:   24 * time.Hour,
		PipelineStages:    []string{"ocr", "classify", "extract", "summarize"},
		ProcessingTimeout: 10 * time.Minute,
		JanitorInterval:   time.Minute,
	}
	app, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return app
}

func doJSON(t *testing.T, app *App, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
}

func registerAndLogin(t *testing.T, app *App, username string) string {
	t.Helper()
	reg := map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct-horse",
	}
	if w := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", reg); w.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", w.Code, w.Body.String())
	}

	w := doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "correct-horse",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Access string `json:"access"`
	}
	decodeBody(t, w, &resp)
	if resp.Access == "" {
		t.Fatal("login returned no access token")
	}
	return resp.Access
}

func uploadDocument(t *testing.T, app *App, token, fileName, content string) string {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: status %d body %s", w.Code, w.Body.String())
	}

	var doc struct {
		ID string `json:"id"`
	}
	decodeBody(t, w, &doc)
	if doc.ID == "" {
		t.Fatal("upload returned no document id")
	}
	return doc.ID
}

const invoiceContent = "Invoice Number: INV-12345\nBill To: ACME Corp\nAmount Due: $1,204.50\nDue Date: 2026-09-15\nPayment terms apply.\n"

func TestUploadProcessAndInspect(t *testing.T) {
	app := newTestApp(t)
	token := registerAndLogin(t, app, "alice")
	docID := uploadDocument(t, app, token, "invoice.txt", invoiceContent)

	w := doJSON(t, app, http.MethodPost, "/api/v1/documents/"+docID+"/process", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("process: status %d body %s", w.Code, w.Body.String())
	}
	var run struct {
		Document struct {
			Status       string `json:"status"`
			DocumentType string `json:"document_type"`
		} `json:"document"`
		RunID  string `json:"run_id"`
		Fields []struct {
			ID    string `json:"id"`
			Key   string `json:"field_key"`
			Value string `json:"field_value"`
		} `json:"fields"`
		Error string `json:"error"`
	}
	decodeBody(t, w, &run)
	if run.Error != "" {
		t.Fatalf("run error: %s", run.Error)
	}
	if run.Document.Status != "completed" {
		t.Fatalf("status = %q, want completed", run.Document.Status)
	}
	if run.Document.DocumentType != "invoice" {
		t.Fatalf("document_type = %q, want invoice", run.Document.DocumentType)
	}
	if len(run.Fields) == 0 {
		t.Fatal("expected extracted fields")
	}

	// Fields endpoint agrees with the run response.
	w = doJSON(t, app, http.MethodGet, "/api/v1/documents/"+docID+"/data", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("data: status %d body %s", w.Code, w.Body.String())
	}

	// Validate one field.
	w = doJSON(t, app, http.MethodPost, "/api/v1/documents/"+docID+"/data/"+run.Fields[0].ID+"/validate", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("validate: status %d body %s", w.Code, w.Body.String())
	}
	var validated struct {
		Validated bool `json:"validated"`
	}
	decodeBody(t, w, &validated)
	if !validated.Validated {
		t.Fatal("field should be validated")
	}

	// Processing log records the run.
	w = doJSON(t, app, http.MethodGet, "/api/v1/documents/"+docID+"/log", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("log: status %d body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "processing_completed") {
		t.Fatalf("log missing completion entry: %s", w.Body.String())
	}
}

func TestProcessFailedRunStillReturnsOK(t *testing.T) {
	app := newTestApp(t)
	token := registerAndLogin(t, app, "bob")

	// A registered document with no stored content cannot produce text.
	w := doJSON(t, app, http.MethodPost, "/api/v1/documents", token, map[string]string{
		"file_name": "ghost.txt",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", w.Code, w.Body.String())
	}
	var doc struct {
		ID string `json:"id"`
	}
	decodeBody(t, w, &doc)

	w = doJSON(t, app, http.MethodPost, "/api/v1/documents/"+doc.ID+"/process", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("process: status %d body %s", w.Code, w.Body.String())
	}
	var run struct {
		Document struct {
			Status string `json:"status"`
		} `json:"document"`
		Error string `json:"error"`
	}
	decodeBody(t, w, &run)
	if run.Document.Status != "error" {
		t.Fatalf("status = %q, want error", run.Document.Status)
	}
	if run.Error == "" {
		t.Fatal("expected run error detail")
	}
}

func TestCrossTenantIsNotFound(t *testing.T) {
	app := newTestApp(t)
	aliceToken := registerAndLogin(t, app, "alice")
	bobToken := registerAndLogin(t, app, "bob")
	docID := uploadDocument(t, app, aliceToken, "invoice.txt", invoiceContent)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/documents/" + docID},
		{http.MethodDelete, "/api/v1/documents/" + docID},
		{http.MethodPost, "/api/v1/documents/" + docID + "/process"},
		{http.MethodGet, "/api/v1/documents/" + docID + "/data"},
		{http.MethodGet, "/api/v1/documents/" + docID + "/log"},
	}
	for _, p := range paths {
		if w := doJSON(t, app, p.method, p.path, bobToken, nil); w.Code != http.StatusNotFound {
			t.Fatalf("%s %s: status %d, want 404", p.method, p.path, w.Code)
		}
	}
}

func TestStatsSummarizesStatuses(t *testing.T) {
	app := newTestApp(t)
	token := registerAndLogin(t, app, "carol")

	processed := uploadDocument(t, app, token, "invoice.txt", invoiceContent)
	uploadDocument(t, app, token, "pending.txt", "Plain note without structure but text. Key: Value\n")

	if w := doJSON(t, app, http.MethodPost, "/api/v1/documents/"+processed+"/process", token, nil); w.Code != http.StatusOK {
		t.Fatalf("process: status %d", w.Code)
	}

	w := doJSON(t, app, http.MethodGet, "/api/v1/stats", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: status %d body %s", w.Code, w.Body.String())
	}
	var summary struct {
		TotalDocuments int `json:"total_documents"`
		Pending        int `json:"pending"`
		Completed      int `json:"completed"`
	}
	decodeBody(t, w, &summary)
	if summary.TotalDocuments != 2 || summary.Pending != 1 || summary.Completed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	app := newTestApp(t)
	w := doJSON(t, app, http.MethodGet, "/api/v1/documents", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{"/api/v1/health", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		app.Router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, w.Code)
		}
	}
}

func TestDeleteRemovesDocumentAndArtifacts(t *testing.T) {
	app := newTestApp(t)
	token := registerAndLogin(t, app, "dave")
	docID := uploadDocument(t, app, token, "invoice.txt", invoiceContent)

	if w := doJSON(t, app, http.MethodPost, "/api/v1/documents/"+docID+"/process", token, nil); w.Code != http.StatusOK {
		t.Fatalf("process: status %d", w.Code)
	}
	if w := doJSON(t, app, http.MethodDelete, "/api/v1/documents/"+docID, token, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", w.Code)
	}
	if w := doJSON(t, app, http.MethodGet, "/api/v1/documents/"+docID, token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d", w.Code)
	}

	// Stats no longer count the document.
	w := doJSON(t, app, http.MethodGet, "/api/v1/stats", token, nil)
	var summary struct {
		TotalDocuments int `json:"total_documents"`
	}
	decodeBody(t, w, &summary)
	if summary.TotalDocuments != 0 {
		t.Fatalf("total = %d, want 0", summary.TotalDocuments)
	}
}

func TestListDocumentsNewestFirst(t *testing.T) {
	app := newTestApp(t)
	token := registerAndLogin(t, app, "erin")
	for i := 0; i < 3; i++ {
		uploadDocument(t, app, token, fmt.Sprintf("doc-%d.txt", i), invoiceContent)
	}

	w := doJSON(t, app, http.MethodGet, "/api/v1/documents?limit=2", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status %d body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Documents []struct {
			ID string `json:"id"`
		} `json:"documents"`
		Limit int `json:"limit"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Documents) != 2 || resp.Limit != 2 {
		t.Fatalf("unexpected page: %+v", resp)
	}
}
