package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"discovery/api/internal/form"
	"discovery/api/internal/intake"
	"discovery/api/internal/search"
	"discovery/api/internal/store"
	"discovery/api/internal/wizard"
)

type fakeIntake struct {
	saveFn   func(form.Record, *int) (intake.SaveResult, error)
	submitFn func(form.Record) (store.Submission, error)
}

func (f *fakeIntake) Save(_ context.Context, record form.Record, section *int) (intake.SaveResult, error) {
	if f.saveFn != nil {
		return f.saveFn(record, section)
	}
	return intake.SaveResult{Record: record, Submission: store.Submission{ID: "row-1", CompletedSections: []int{*section}}}, nil
}

func (f *fakeIntake) Load(context.Context, string) (intake.Draft, bool, error) {
	return intake.Draft{}, false, nil
}

func (f *fakeIntake) Submit(_ context.Context, record form.Record) (store.Submission, error) {
	if f.submitFn != nil {
		return f.submitFn(record)
	}
	sub := intake.ToSubmission(record)
	sub.ID = "row-1"
	sub.Status = string(form.StatusCompleted)
	sub.CompletedSections = form.AllSections(9).Ints()
	sub.LastSection = 8
	return sub, nil
}

type fakeSubmissions struct {
	getFn  func(id string) (store.Submission, error)
	listFn func(filter store.ListFilter) ([]store.SubmissionSummary, int, error)
}

func (f *fakeSubmissions) GetSubmission(_ context.Context, id string) (store.Submission, error) {
	if f.getFn != nil {
		return f.getFn(id)
	}
	return store.Submission{}, fmt.Errorf("get submission %s: %w", id, sql.ErrNoRows)
}

func (f *fakeSubmissions) ListSubmissions(_ context.Context, filter store.ListFilter) ([]store.SubmissionSummary, int, error) {
	if f.listFn != nil {
		return f.listFn(filter)
	}
	return []store.SubmissionSummary{}, 0, nil
}

type fakeSearch struct {
	searchFn func(q search.Query) search.Response
}

func (f *fakeSearch) Search(_ context.Context, q search.Query) search.Response {
	return f.searchFn(q)
}

type testEnv struct {
	server      *HTTPServer
	intake      *fakeIntake
	submissions *fakeSubmissions
	search      *fakeSearch
	checks      []Check
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithDefinition(t, nil)
}

func newTestEnvWithDefinition(t *testing.T, def *form.Definition) *testEnv {
	t.Helper()
	env := &testEnv{
		intake:      &fakeIntake{},
		submissions: &fakeSubmissions{},
		search: &fakeSearch{searchFn: func(q search.Query) search.Response {
			return search.Response{Results: []search.Result{}, Query: q.Text}
		}},
	}
	registry := wizard.NewRegistry(wizard.Deps{Definition: def, Intake: env.intake}, nil, time.Hour)
	svc := NewService(Deps{
		Definition:  def,
		Sessions:    registry,
		Submissions: env.submissions,
		Search:      env.search,
		Checks:      []Check{{Name: "database", Ping: func(context.Context) error { return nil }}},
	})
	env.server = NewHTTPServer(svc, "*", nil)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr, decode(t, rr)
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if rr.Body.Len() == 0 {
		return payload
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return payload
}

func (e *testEnv) startSession(t *testing.T) string {
	t.Helper()
	rr, payload := e.do(t, http.MethodPost, "/api/sessions", map[string]any{})
	if rr.Code != http.StatusOK {
		t.Fatalf("start session: %d %s", rr.Code, rr.Body.String())
	}
	session := payload["session"].(map[string]any)
	return session["sessionId"].(string)
}

func sectionOf(payload map[string]any) int {
	session := payload["session"].(map[string]any)
	return int(session["currentSection"].(float64))
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rr, payload := env.do(t, http.MethodGet, "/api/health", nil)
	if rr.Code != http.StatusOK || payload["ok"] != true {
		t.Fatalf("unexpected health response %d %v", rr.Code, payload)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestReadyEndpointReportsFailingCheck(t *testing.T) {
	env := newTestEnv(t)
	env.server.service.checks = append(env.server.service.checks, Check{
		Name: "snapshots",
		Ping: func(context.Context) error { return errors.New("connection refused") },
	})
	rr, payload := env.do(t, http.MethodGet, "/api/ready", nil)
	if rr.Code != http.StatusServiceUnavailable || payload["status"] != "not_ready" {
		t.Fatalf("unexpected ready response %d %v", rr.Code, payload)
	}
	checks := payload["checks"].(map[string]any)
	if checks["database"].(map[string]any)["status"] != "ok" {
		t.Fatalf("expected database ok, got %v", checks)
	}
	if checks["snapshots"].(map[string]any)["error"] != "connection refused" {
		t.Fatalf("expected snapshot error, got %v", checks)
	}
}

func TestFormDefinitionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rr, payload := env.do(t, http.MethodGet, "/api/form", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	if sections := payload["sections"].([]any); len(sections) != 9 {
		t.Fatalf("expected 9 sections, got %d", len(sections))
	}
}

func TestSessionNavigation(t *testing.T) {
	env := newTestEnv(t)
	id := env.startSession(t)

	rr, payload := env.do(t, http.MethodPatch, "/api/sessions/"+id+"/fields", `{"companyName":"Acme Co","email":"ops@acme.io"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", rr.Code, rr.Body.String())
	}

	rr, payload = env.do(t, http.MethodPost, "/api/sessions/"+id+"/next", nil)
	if rr.Code != http.StatusOK || sectionOf(payload) != 1 {
		t.Fatalf("next: %d %v", rr.Code, payload)
	}
	notice := payload["notice"].(map[string]any)
	if notice["kind"] != "success" || notice["title"] != "Progress Saved" {
		t.Fatalf("unexpected notice %v", notice)
	}

	rr, payload = env.do(t, http.MethodPost, "/api/sessions/"+id+"/previous", nil)
	if rr.Code != http.StatusOK || sectionOf(payload) != 0 {
		t.Fatalf("previous: %d %v", rr.Code, payload)
	}

	rr, _ = env.do(t, http.MethodPost, "/api/sessions/"+id+"/sections/12", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for out-of-range jump, got %d", rr.Code)
	}
	rr, _ = env.do(t, http.MethodPost, "/api/sessions/"+id+"/submit", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 when not on last section, got %d", rr.Code)
	}
}

func TestDegradedSaveStillNavigates(t *testing.T) {
	env := newTestEnv(t)
	env.intake.saveFn = func(form.Record, *int) (intake.SaveResult, error) {
		return intake.SaveResult{}, &intake.PersistenceError{Op: "update", Err: errors.New("timeout")}
	}
	id := env.startSession(t)
	env.do(t, http.MethodPatch, "/api/sessions/"+id+"/fields", `{"email":"ops@acme.io"}`)

	rr, payload := env.do(t, http.MethodPost, "/api/sessions/"+id+"/next", nil)
	if rr.Code != http.StatusOK || sectionOf(payload) != 1 {
		t.Fatalf("next: %d %v", rr.Code, payload)
	}
	if payload["notice"].(map[string]any)["kind"] != "degraded" {
		t.Fatalf("expected degraded notice, got %v", payload["notice"])
	}
}

func TestSubmitFlow(t *testing.T) {
	env := newTestEnv(t)
	id := env.startSession(t)
	env.do(t, http.MethodPatch, "/api/sessions/"+id+"/fields", `{"email":"ops@acme.io"}`)

	if rr, _ := env.do(t, http.MethodPost, "/api/sessions/"+id+"/sections/8", nil); rr.Code != http.StatusOK {
		t.Fatalf("jump: %d", rr.Code)
	}

	env.intake.submitFn = func(form.Record) (store.Submission, error) {
		return store.Submission{}, &intake.PersistenceError{Op: "insert", Err: errors.New("down")}
	}
	rr, payload := env.do(t, http.MethodPost, "/api/sessions/"+id+"/submit", nil)
	if rr.Code != http.StatusBadGateway || payload["code"] != "PERSISTENCE_FAILED" {
		t.Fatalf("expected 502, got %d %v", rr.Code, payload)
	}
	details := payload["details"].(map[string]any)
	if details["notice"].(map[string]any)["kind"] != "failure" {
		t.Fatalf("expected failure notice in details, got %v", details)
	}

	env.intake.submitFn = nil
	rr, payload = env.do(t, http.MethodPost, "/api/sessions/"+id+"/submit", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", rr.Code, rr.Body.String())
	}
	session := payload["session"].(map[string]any)
	if session["submitted"] != true || session["confirmation"].(map[string]any)["id"] != "row-1" {
		t.Fatalf("expected thank-you state, got %v", session)
	}

	rr, _ = env.do(t, http.MethodPost, "/api/sessions/"+id+"/submit", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second submit, got %d", rr.Code)
	}
}

func TestStageAndRemoveFilesEndpoint(t *testing.T) {
	env := newTestEnv(t)
	id := env.startSession(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, name := range []string{"script.pdf", "song.mp3"} {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		_, _ = part.Write([]byte("content of " + name))
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/files/salesScripts", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("stage: %d %s", rr.Code, rr.Body.String())
	}
	payload := decode(t, rr)
	if payload["accepted"].(float64) != 1 {
		t.Fatalf("expected one accepted file, got %v", payload["accepted"])
	}
	rejections := payload["rejections"].([]any)
	if len(rejections) != 1 || rejections[0].(map[string]any)["reason"] != "Invalid file type" {
		t.Fatalf("unexpected rejections %v", rejections)
	}

	rr, _ = env.do(t, http.MethodDelete, "/api/sessions/"+id+"/files/salesScripts/3", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad index, got %d", rr.Code)
	}
	rr, payload = env.do(t, http.MethodDelete, "/api/sessions/"+id+"/files/salesScripts/0", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("remove: %d", rr.Code)
	}
	record := payload["session"].(map[string]any)["record"].(map[string]any)
	if scripts := record["salesScripts"].([]any); len(scripts) != 0 {
		t.Fatalf("expected no scripts after removal, got %v", scripts)
	}
}

func stageRequest(t *testing.T, id string, parts map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, data := range parts {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		_, _ = part.Write(data)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/files/salesScripts", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func smallUploadDefinition() *form.Definition {
	def := form.DefaultDefinition()
	def.Attachments.Fields = map[string]form.AttachmentRule{
		"salesScripts": {MaxFiles: 2, MaxSizeMB: 1, Accept: []string{".pdf", ".txt"}},
	}
	return def
}

func TestStageFilesRejectsOversizePart(t *testing.T) {
	env := newTestEnvWithDefinition(t, smallUploadDefinition())
	id := env.startSession(t)

	req := stageRequest(t, id, map[string][]byte{
		"big.pdf": bytes.Repeat([]byte("x"), 1024*1024+1),
	})
	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("stage: %d %s", rr.Code, rr.Body.String())
	}
	payload := decode(t, rr)
	if payload["accepted"].(float64) != 0 {
		t.Fatalf("expected nothing accepted, got %v", payload["accepted"])
	}
	rejections := payload["rejections"].([]any)
	if len(rejections) != 1 || rejections[0].(map[string]any)["reason"] != "File too large" {
		t.Fatalf("unexpected rejections %v", rejections)
	}
	record := payload["session"].(map[string]any)["record"].(map[string]any)
	if scripts := record["salesScripts"].([]any); len(scripts) != 0 {
		t.Fatalf("expected no staged scripts, got %v", scripts)
	}
}

func TestStageFilesCapsRequestBody(t *testing.T) {
	env := newTestEnvWithDefinition(t, smallUploadDefinition())
	id := env.startSession(t)

	req := stageRequest(t, id, map[string][]byte{
		"huge.pdf": bytes.Repeat([]byte("x"), 4*1024*1024),
	})
	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d %s", rr.Code, rr.Body.String())
	}
	if payload := decode(t, rr); payload["code"] != "PAYLOAD_TOO_LARGE" {
		t.Fatalf("unexpected error payload %v", payload)
	}
}

func TestSessionErrors(t *testing.T) {
	env := newTestEnv(t)
	rr, _ := env.do(t, http.MethodGet, "/api/sessions/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	rr, _ = env.do(t, http.MethodPost, "/api/sessions", map[string]any{"sessionId": "has spaces"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for malformed id, got %d", rr.Code)
	}
	id := env.startSession(t)
	rr, _ = env.do(t, http.MethodPatch, "/api/sessions/"+id+"/fields", `{"targetCallLength":"long"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for invalid patch, got %d", rr.Code)
	}
	rr, _ = env.do(t, http.MethodPatch, "/api/sessions/"+id+"/fields", `{"emial":"ops@acme.io"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown field, got %d", rr.Code)
	}
}

func TestSubmissionsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	var listed store.ListFilter
	env.submissions.listFn = func(filter store.ListFilter) ([]store.SubmissionSummary, int, error) {
		listed = filter
		return []store.SubmissionSummary{{ID: "row-1", CompanyName: "Acme Co"}}, 1, nil
	}
	env.search.searchFn = func(q search.Query) search.Response {
		return search.Response{Results: []search.Result{{ID: "row-2"}}, Total: 1, Query: q.Text}
	}

	rr, payload := env.do(t, http.MethodGet, "/api/submissions?status=completed&limit=10", nil)
	if rr.Code != http.StatusOK || payload["total"].(float64) != 1 {
		t.Fatalf("list: %d %v", rr.Code, payload)
	}
	if listed.Status != "completed" || listed.Limit != 10 {
		t.Fatalf("unexpected filter %+v", listed)
	}

	rr, payload = env.do(t, http.MethodGet, "/api/submissions?q=acme", nil)
	if rr.Code != http.StatusOK || payload["query"] != "acme" {
		t.Fatalf("search: %d %v", rr.Code, payload)
	}

	rr, _ = env.do(t, http.MethodGet, "/api/submissions?status=archived", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown status, got %d", rr.Code)
	}

	rr, _ = env.do(t, http.MethodGet, "/api/submissions/unknown", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	env.submissions.getFn = func(id string) (store.Submission, error) {
		return store.Submission{ID: id, CompanyName: "Acme Co", Status: "draft"}, nil
	}
	rr, payload = env.do(t, http.MethodGet, "/api/submissions/row-1", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"company_name":"Acme Co"`) {
		t.Fatalf("get: %d %v", rr.Code, payload)
	}
}
