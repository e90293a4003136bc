package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hzwangyq/bidcheck/internal/core/domain"
)

type ingestorFake struct {
	doc *domain.Document
	err error
}

func (f *ingestorFake) Upload(_ context.Context, filename, contentType string, _ io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	doc := *f.doc
	doc.Filename = filename
	doc.ContentType = contentType
	return &doc, nil
}

type docsRepoFake struct {
	doc    *domain.Document
	getErr error
}

func (f *docsRepoFake) Create(context.Context, *domain.Document) error { return nil }

func (f *docsRepoFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	doc := *f.doc
	return &doc, nil
}

func (f *docsRepoFake) Delete(context.Context, string) error { return nil }

func (f *docsRepoFake) List(context.Context) ([]domain.Document, error) {
	return []domain.Document{*f.doc}, nil
}

type storageStub struct{}

func (storageStub) Save(context.Context, string, io.Reader) error { return nil }

func (storageStub) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (storageStub) Delete(context.Context, string) error { return nil }

type taskServiceFake struct {
	submitID  string
	submitErr error
	task      domain.Task
	statusErr error
	result    *domain.ConversionResult
	resultErr error
	stopErr   error
}

func (f *taskServiceFake) Submit(context.Context, string) (string, error) {
	return f.submitID, f.submitErr
}

func (f *taskServiceFake) Status(context.Context, string) (domain.Task, error) {
	return f.task, f.statusErr
}

func (f *taskServiceFake) Result(context.Context, string) (*domain.ConversionResult, error) {
	return f.result, f.resultErr
}

func (f *taskServiceFake) Stop(context.Context, string) error { return f.stopErr }

type checklistRepoFake struct {
	items     []domain.ChecklistItem
	createErr error
}

func (f *checklistRepoFake) Create(_ context.Context, item *domain.ChecklistItem) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.items = append(f.items, *item)
	return nil
}

func (f *checklistRepoFake) GetByID(_ context.Context, id string) (*domain.ChecklistItem, error) {
	for i := range f.items {
		if f.items[i].ID == id {
			return &f.items[i], nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "get checklist item", errors.New(id))
}

func (f *checklistRepoFake) List(context.Context) ([]domain.ChecklistItem, error) {
	return f.items, nil
}

func (f *checklistRepoFake) Delete(context.Context, string) error { return nil }

type evaluatorFake struct {
	results []domain.CheckResult
}

func (f *evaluatorFake) Evaluate(_ context.Context, _ string, item domain.ChecklistItem) (domain.CheckResult, error) {
	return domain.CheckResult{Item: item, Verdict: domain.VerdictSatisfied}, nil
}

func (f *evaluatorFake) EvaluateAll(context.Context, string, []domain.ChecklistItem) []domain.CheckResult {
	return f.results
}

type resultsRepoFake struct {
	saved   []domain.CheckResult
	savedID string
	listed  []domain.CheckResult
}

func (f *resultsRepoFake) SaveAll(_ context.Context, fileID string, results []domain.CheckResult) error {
	f.savedID = fileID
	f.saved = results
	return nil
}

func (f *resultsRepoFake) ListByFile(context.Context, string) ([]domain.CheckResult, error) {
	return f.listed, nil
}

type routerDeps struct {
	ingestor  *ingestorFake
	docs      *docsRepoFake
	tasks     *taskServiceFake
	checklist *checklistRepoFake
	evaluator *evaluatorFake
	results   *resultsRepoFake
}

func newTestRouter(deps routerDeps) http.Handler {
	if deps.ingestor == nil {
		deps.ingestor = &ingestorFake{doc: &domain.Document{FileID: "file-1"}}
	}
	if deps.docs == nil {
		deps.docs = &docsRepoFake{doc: &domain.Document{FileID: "file-1", Filename: "tender.pdf"}}
	}
	if deps.tasks == nil {
		deps.tasks = &taskServiceFake{}
	}
	if deps.checklist == nil {
		deps.checklist = &checklistRepoFake{}
	}
	if deps.evaluator == nil {
		deps.evaluator = &evaluatorFake{}
	}
	if deps.results == nil {
		deps.results = &resultsRepoFake{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(deps.ingestor, deps.docs, storageStub{}, deps.tasks, deps.checklist, deps.evaluator, deps.results, logger).Handler()
}

func TestHealthz(t *testing.T) {
	handler := newTestRouter(routerDeps{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUploadFile(t *testing.T) {
	handler := newTestRouter(routerDeps{})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "tender.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("%PDF-1.7")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/files", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var doc domain.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.Filename != "tender.pdf" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestUploadFileRequiresMultipart(t *testing.T) {
	handler := newTestRouter(routerDeps{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/files", strings.NewReader("raw")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSubmitConversion(t *testing.T) {
	handler := newTestRouter(routerDeps{tasks: &taskServiceFake{submitID: "task-1"}})

	req := httptest.NewRequest(http.MethodPost, "/v1/convert2md", strings.NewReader(`{"file_id":"file-1"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["task_id"] != "task-1" || resp["status"] != "pending" {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestSubmitConversionUnknownFile(t *testing.T) {
	tasks := &taskServiceFake{submitErr: domain.WrapError(domain.ErrNotFound, "fetch document", errors.New("file-x"))}
	handler := newTestRouter(routerDeps{tasks: tasks})

	req := httptest.NewRequest(http.MethodPost, "/v1/convert2md", strings.NewReader(`{"file_id":"file-x"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSubmitConversionMissingFileID(t *testing.T) {
	handler := newTestRouter(routerDeps{})
	req := httptest.NewRequest(http.MethodPost, "/v1/convert2md", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestConversionStatus(t *testing.T) {
	now := time.Now().UTC()
	tasks := &taskServiceFake{task: domain.Task{
		ID:        "task-1",
		FileID:    "file-1",
		Status:    domain.TaskProcessing,
		Progress:  42,
		StartTime: &now,
	}}
	handler := newTestRouter(routerDeps{tasks: tasks})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/convert2md/task-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var task domain.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &task); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if task.Progress != 42 || task.Status != domain.TaskProcessing {
		t.Fatalf("unexpected task: %+v", task)
	}
}

func TestConversionResultNotReady(t *testing.T) {
	tasks := &taskServiceFake{resultErr: domain.WrapError(domain.ErrNotReady, "fetch result", errors.New("task processing"))}
	handler := newTestRouter(routerDeps{tasks: tasks})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/convert2md/task-1/result", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestStopTerminalTask(t *testing.T) {
	tasks := &taskServiceFake{stopErr: domain.WrapError(domain.ErrInvalidState, "stop task", errors.New("already completed"))}
	handler := newTestRouter(routerDeps{tasks: tasks})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/convert2md/task-1/stop", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestCreateChecklistItem(t *testing.T) {
	checklist := &checklistRepoFake{}
	handler := newTestRouter(routerDeps{checklist: checklist})

	req := httptest.NewRequest(http.MethodPost, "/v1/checklist",
		strings.NewReader(`{"name":"财务报表","requirement":"供应商需提供近三年财务报表"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(checklist.items) != 1 || checklist.items[0].ID == "" {
		t.Fatalf("item not persisted: %+v", checklist.items)
	}
}

func TestCreateChecklistItemValidation(t *testing.T) {
	handler := newTestRouter(routerDeps{})
	req := httptest.NewRequest(http.MethodPost, "/v1/checklist", strings.NewReader(`{"name":"x"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRunReviewPersistsResults(t *testing.T) {
	item := domain.ChecklistItem{ID: "item-1", Name: "财务报表"}
	tasks := &taskServiceFake{result: &domain.ConversionResult{
		FileID:          "file-1",
		MarkdownContent: "## 第 1 页\n内容",
	}}
	results := &resultsRepoFake{}
	evaluator := &evaluatorFake{results: []domain.CheckResult{{Item: item, Verdict: domain.VerdictSatisfied}}}
	handler := newTestRouter(routerDeps{
		tasks:     tasks,
		checklist: &checklistRepoFake{items: []domain.ChecklistItem{item}},
		evaluator: evaluator,
		results:   results,
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/review", strings.NewReader(`{"task_id":"task-1"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if results.savedID != "file-1" || len(results.saved) != 1 {
		t.Fatalf("results not persisted: id=%q n=%d", results.savedID, len(results.saved))
	}
}

func TestRunReviewEmptyChecklist(t *testing.T) {
	tasks := &taskServiceFake{result: &domain.ConversionResult{FileID: "file-1"}}
	handler := newTestRouter(routerDeps{tasks: tasks})

	req := httptest.NewRequest(http.MethodPost, "/v1/review", strings.NewReader(`{"task_id":"task-1"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestRequestIDHeaderPropagates(t *testing.T) {
	handler := newTestRouter(routerDeps{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected request id to round-trip, got %q", got)
	}
}

func TestRequestIDGenerated(t *testing.T) {
	handler := newTestRouter(routerDeps{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected a generated request id")
	}
}
