package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"tcpsweep/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRouter(store TaskStore, apiKey string) *gin.Engine {
	cfg := config.Defaults()
	cfg.APIKey = apiKey
	cfg.MaxScanWorkers = 100
	return NewRouter(store, cfg, nil, discardLogger())
}

func doJSON(t *testing.T, router http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateScan_AcceptsAndQueues(t *testing.T) {
	store := NewMemoryStore(8)
	router := testRouter(store, "")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/scans", `{"host":"127.0.0.1","ports":"22,80-81","workers":8,"timeout_ms":250}`, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}

	var accepted ScanAcceptedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if accepted.Status != StatusPending || !uuidV4Pattern.MatchString(accepted.ID) {
		t.Fatalf("unexpected response %+v", accepted)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	queued, err := store.PopFromQueue(ctx)
	if err != nil || queued != accepted.ID {
		t.Fatalf("queue holds %q (%v), want %q", queued, err, accepted.ID)
	}

	task, err := store.GetTask(ctx, accepted.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.Workers != 8 || task.TimeoutMs != 250 || task.Ports != "22,80-81" || task.Host != "127.0.0.1" {
		t.Fatalf("unexpected stored task %+v", task)
	}
}

func TestCreateScan_AppliesDefaults(t *testing.T) {
	store := NewMemoryStore(8)
	cfg := config.Defaults()
	router := NewRouter(store, cfg, nil, discardLogger())

	rec := doJSON(t, router, http.MethodPost, "/api/v1/scans", `{"host":"example.com","ports":"443"}`, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var accepted ScanAcceptedResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &accepted)

	task, err := store.GetTask(context.Background(), accepted.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.Workers != cfg.ScanWorkers || task.Timeout() != cfg.ScanTimeout {
		t.Fatalf("defaults not applied: %+v", task)
	}
}

func TestCreateScan_RejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"malformed json":  `{"host":`,
		"missing host":    `{"ports":"80"}`,
		"missing ports":   `{"host":"127.0.0.1"}`,
		"bad range":       `{"host":"127.0.0.1","ports":"90-80"}`,
		"port zero":       `{"host":"127.0.0.1","ports":"0"}`,
		"too many worker": `{"host":"127.0.0.1","ports":"80","workers":1000}`,
		"negative worker": `{"host":"127.0.0.1","ports":"80","workers":-1}`,
		"huge timeout":    `{"host":"127.0.0.1","ports":"80","timeout_ms":600000}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			store := NewMemoryStore(8)
			rec := doJSON(t, testRouter(store, ""), http.MethodPost, "/api/v1/scans", body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
			}
			if len(store.queue) != 0 {
				t.Fatalf("rejected request was queued")
			}
		})
	}
}

func TestGetScan(t *testing.T) {
	store := NewMemoryStore(8)
	router := testRouter(store, "")
	completed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	task := &ScanTask{
		ID:          "a3f5c62e-1234-4f72-a84a-1c2d3e4f5678",
		Status:      StatusCompleted,
		Host:        "localhost",
		IP:          "127.0.0.1",
		Ports:       "1-1024",
		Workers:     64,
		TimeoutMs:   500,
		OpenPorts:   []uint16{22, 80},
		CreatedAt:   completed.Add(-time.Minute),
		CompletedAt: &completed,
	}
	if err := store.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/v1/scans/"+task.ID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var got ScanTask
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != StatusCompleted || len(got.OpenPorts) != 2 || got.OpenPorts[1] != 80 || got.IP != "127.0.0.1" {
		t.Fatalf("unexpected task %+v", got)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/scans/not-a-uuid", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid id: status %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/scans/b3f5c62e-1234-4f72-a84a-1c2d3e4f5678", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status %d", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	router := testRouter(NewMemoryStore(8), "s3cret")
	body := `{"host":"127.0.0.1","ports":"80"}`

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic s3cret", http.StatusUnauthorized},
		{"wrong key", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer s3cret", http.StatusAccepted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			header := http.Header{}
			if tc.header != "" {
				header.Set("Authorization", tc.header)
			}
			rec := doJSON(t, router, http.MethodPost, "/api/v1/scans", body, header)
			if rec.Code != tc.want {
				t.Fatalf("status %d want %d", rec.Code, tc.want)
			}
		})
	}

	// Health checks stay reachable without credentials.
	rec := doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rec.Code)
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	router := testRouter(NewMemoryStore(8), "")

	header := http.Header{}
	header.Set(requestIDHeader, "req-42")
	rec := doJSON(t, router, http.MethodGet, "/healthz", "", header)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q", got)
	}
	if got := rec.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("request id not echoed: %q", got)
	}
}

func TestRequestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	router := gin.New()
	router.Use(RequestLoggingMiddleware(logger))
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["level"] != "WARN" || entry["path"] != "/missing" || entry["status_code"] != float64(404) {
		t.Fatalf("unexpected log entry %v", entry)
	}
	if entry["request_id"] == "" {
		t.Fatalf("request id missing from log entry %v", entry)
	}
}

func TestCreateScan_DefaultWorkersCappedByMax(t *testing.T) {
	store := NewMemoryStore(8)
	cfg := config.Defaults()
	cfg.ScanWorkers = 1024
	cfg.MaxScanWorkers = 500
	router := NewRouter(store, cfg, nil, discardLogger())

	rec := doJSON(t, router, http.MethodPost, "/api/v1/scans", `{"host":"127.0.0.1","ports":"80"}`, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var accepted ScanAcceptedResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &accepted)

	task, err := store.GetTask(context.Background(), accepted.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.Workers != 500 {
		t.Fatalf("workers = %d, want default capped to 500", task.Workers)
	}

	// Explicit values above the cap are still refused.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/scans", `{"host":"127.0.0.1","ports":"80","workers":501}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("explicit workers over cap: status %d", rec.Code)
	}
}

func TestCreateScan_QueueFull(t *testing.T) {
	store := NewMemoryStore(1)
	router := testRouter(store, "")
	body := `{"host":"127.0.0.1","ports":"80","workers":1}`

	if rec := doJSON(t, router, http.MethodPost, "/api/v1/scans", body, nil); rec.Code != http.StatusAccepted {
		t.Fatalf("first request: status %d body %s", rec.Code, rec.Body.String())
	}

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- doJSON(t, router, http.MethodPost, "/api/v1/scans", body, nil) }()
	select {
	case rec := <-done:
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
		}
	case <-time.After(time.Second):
		t.Fatalf("handler blocked on a full queue")
	}
}

func TestGetScan_CompletedWithoutOpenPorts(t *testing.T) {
	store := NewMemoryStore(8)
	router := testRouter(store, "")
	now := time.Now().UTC()
	for id, task := range map[string]*ScanTask{
		"c3f5c62e-1234-4f72-a84a-1c2d3e4f5678": {Status: StatusCompleted, OpenPorts: []uint16{}, CompletedAt: &now},
		"d3f5c62e-1234-4f72-a84a-1c2d3e4f5678": {Status: StatusPending},
	} {
		task.ID = id
		_ = store.CreateTask(context.Background(), task)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/v1/scans/c3f5c62e-1234-4f72-a84a-1c2d3e4f5678", "", nil)
	if !strings.Contains(rec.Body.String(), `"open_ports":[]`) {
		t.Fatalf("completed scan without open ports should report an empty list: %s", rec.Body.String())
	}
	rec = doJSON(t, router, http.MethodGet, "/api/v1/scans/d3f5c62e-1234-4f72-a84a-1c2d3e4f5678", "", nil)
	if !strings.Contains(rec.Body.String(), `"open_ports":null`) {
		t.Fatalf("pending scan should report null open ports: %s", rec.Body.String())
	}
}
