package tags

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"whatsapp_crm_backend/platform/apperr"
	"whatsapp_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type stubRecalculator struct {
	got *uuid.UUID
	res Result
	err error
}

func (s *stubRecalculator) Recalculate(_ context.Context, clientID *uuid.UUID) (Result, error) {
	s.got = clientID
	return s.res, s.err
}

type stubQueue struct {
	calls int
	got   *uuid.UUID
	err   error
}

func (q *stubQueue) EnqueueTagRecalculation(_ context.Context, clientID *uuid.UUID) error {
	q.calls++
	q.got = clientID
	return q.err
}

func newTestRouter(svc Recalculator) *gin.Engine {
	return newQueuedTestRouter(svc, nil)
}

func newQueuedTestRouter(svc Recalculator, queue Enqueuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(svc, validator.New())
	h.queue = queue
	r.POST("/tags/recalculate", h.HandleRecalculate)
	return r
}

func postRecalculate(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/tags/recalculate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleRecalculateWithoutBody(t *testing.T) {
	stub := &stubRecalculator{res: Result{ClientsProcessed: 4, TagsCreated: 6}}
	rec := httptest.NewRecorder()
	newTestRouter(stub).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tags/recalculate", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.got != nil {
		t.Fatalf("expected full pass, got client %v", stub.got)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["success"] != true || body["clientsProcessed"] != float64(4) {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestHandleRecalculateSingleClient(t *testing.T) {
	id := uuid.New()
	stub := &stubRecalculator{}
	req := httptest.NewRequest(http.MethodPost, "/tags/recalculate", strings.NewReader(`{"clientId":"`+id.String()+`"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	newTestRouter(stub).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || stub.got == nil || *stub.got != id {
		t.Fatalf("expected single-client pass for %s, got %d %v", id, rec.Code, stub.got)
	}
}

func TestHandleRecalculateRejectsBadID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/tags/recalculate", strings.NewReader(`{"clientId":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	newTestRouter(&stubRecalculator{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleRecalculateAsyncEnqueues(t *testing.T) {
	id := uuid.New()
	stub := &stubRecalculator{}
	queue := &stubQueue{}

	rec := postRecalculate(newQueuedTestRouter(stub, queue), `{"clientId":"`+id.String()+`","async":true}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if queue.calls != 1 || queue.got == nil || *queue.got != id {
		t.Fatalf("expected one enqueue for %s, got %d %v", id, queue.calls, queue.got)
	}
	if stub.got != nil {
		t.Fatalf("queued pass must not run inline")
	}
}

func TestHandleRecalculateAsyncWithoutQueueRunsInline(t *testing.T) {
	stub := &stubRecalculator{res: Result{ClientsProcessed: 2}}

	rec := postRecalculate(newTestRouter(stub), `{"async":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected inline 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleRecalculateEnqueueFailure(t *testing.T) {
	queue := &stubQueue{err: errors.New("redis down")}

	rec := postRecalculate(newQueuedTestRouter(&stubRecalculator{}, queue), `{"async":true}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestHandleRecalculateInterruptedReturnsPartialCounters(t *testing.T) {
	partial := Result{ClientsProcessed: 3, TagsCreated: 5}
	stub := &stubRecalculator{
		res: partial,
		err: apperr.Wrap(apperr.KindInternal, "tag pass interrupted", context.DeadlineExceeded).WithDetails(partial),
	}

	rec := postRecalculate(newTestRouter(stub), `{}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body struct {
		Success bool   `json:"success"`
		Details Result `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Details.ClientsProcessed != 3 || body.Details.TagsCreated != 5 {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}
