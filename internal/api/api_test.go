package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Swind/go-task-manager/core"
	"github.com/Swind/go-task-manager/internal/bench"
	"github.com/Swind/go-task-manager/internal/sqlite"
	promexp "github.com/Swind/go-task-manager/observability/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
)

func newTestServer(t *testing.T, concurrency int) (*Server, *bench.Runner) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("sqlite.Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	runner := bench.NewRunner(core.NewTaskManager(concurrency, nil), db, nil)
	t.Cleanup(runner.Wait)
	srv := NewServer(runner, db, bench.Workload{Tasks: 4, Seed: 1}, nil)
	return srv, runner
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func waitIdle(t *testing.T, runner *bench.Runner) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for runner.Busy() {
		if time.Now().After(deadline) {
			t.Fatal("batch did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ─── Health Check ───────────────────────────────────────────────────────────

func TestAPI_Health(t *testing.T) {
	srv, _ := newTestServer(t, 1)

	w := do(t, srv.Handler(), "GET", "/health", nil)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if body := decode[map[string]string](t, w); body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestAPI_Stats_Idle(t *testing.T) {
	srv, _ := newTestServer(t, 3)

	w := do(t, srv.Handler(), "GET", "/api/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode[statsResponse](t, w)
	if body.MaxConcurrency != 3 || body.Running {
		t.Errorf("stats = %+v", body)
	}
}

// ─── Batches ────────────────────────────────────────────────────────────────

// TestAPI_StartBatch_ThenFetch verifies the batch lifecycle over HTTP
// Given: An idle server backed by SQLite
// When: A batch is started, finishes and is fetched by ID
// Then: The report is listed and carries every task
func TestAPI_StartBatch_ThenFetch(t *testing.T) {
	srv, runner := newTestServer(t, 2)
	h := srv.Handler()

	w := do(t, h, "POST", "/api/batches", map[string]any{"name": "http", "tasks": 6, "failure_rate": 0.5})
	if w.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, body = %s", w.Code, w.Body.String())
	}
	started := decode[map[string]any](t, w)
	id, _ := started["id"].(string)
	if id == "" || started["tasks"].(float64) != 6 {
		t.Fatalf("start response = %v", started)
	}

	runner.Wait()

	w = do(t, h, "GET", "/api/batches/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	report := decode[bench.Report](t, w)
	if report.Name != "http" || len(report.Tasks) != 6 {
		t.Errorf("report = %+v", report)
	}

	w = do(t, h, "GET", "/api/batches?limit=5", nil)
	list := decode[struct {
		Running bool           `json:"running"`
		Batches []bench.Report `json:"batches"`
	}](t, w)
	if list.Running || len(list.Batches) != 1 || list.Batches[0].ID.String() != id {
		t.Errorf("list = %+v", list)
	}

	w = do(t, h, "GET", "/api/tasks/recent?limit=2", nil)
	recent := decode[map[string][]taskResponse](t, w)
	if len(recent["tasks"]) != 2 {
		t.Errorf("recent tasks = %d, want 2", len(recent["tasks"]))
	}
}

func TestAPI_StartBatch_Invalid(t *testing.T) {
	srv, _ := newTestServer(t, 1)
	h := srv.Handler()

	tests := []struct {
		name string
		body string
	}{
		{"bad json", "{"},
		{"bad duration", `{"min_delay":"soon"}`},
		{"bad rate", `{"failure_rate":2}`},
		{"negative tasks", `{"tasks":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/batches", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

// TestAPI_Conflict_AndCancel verifies one batch at a time and cancellation
// Given: A running batch of hour-long tasks
// When: Another batch is posted, one task is cancelled, then the batch
// Then: The second post is 409 and the batch ends with everything cancelled
func TestAPI_Conflict_AndCancel(t *testing.T) {
	srv, runner := newTestServer(t, 1)
	h := srv.Handler()

	w := do(t, h, "POST", "/api/batches", map[string]any{"tasks": 3, "min_delay": "1h", "max_delay": "1h"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("start status = %d", w.Code)
	}
	id := decode[map[string]any](t, w)["id"].(string)

	if w := do(t, h, "POST", "/api/batches", nil); w.Code != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", w.Code)
	}

	var active struct {
		Active  []taskResponse `json:"active"`
		Pending []taskResponse `json:"pending"`
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(active.Active) == 0 && time.Now().Before(deadline) {
		active = decode[struct {
			Active  []taskResponse `json:"active"`
			Pending []taskResponse `json:"pending"`
		}](t, do(t, h, "GET", "/api/tasks/active", nil))
		time.Sleep(5 * time.Millisecond)
	}
	if len(active.Active) != 1 || len(active.Pending) != 2 {
		t.Fatalf("active/pending = %d/%d, want 1/2", len(active.Active), len(active.Pending))
	}

	if w := do(t, h, "POST", "/api/tasks/"+active.Pending[0].ID+"/cancel", nil); w.Code != http.StatusOK {
		t.Errorf("cancel task status = %d", w.Code)
	}
	if w := do(t, h, "POST", "/api/tasks/"+active.Pending[0].ID+"/cancel", nil); w.Code != http.StatusNotFound {
		t.Errorf("repeat cancel status = %d, want 404", w.Code)
	}
	if w := do(t, h, "POST", "/api/tasks/not-an-id/cancel", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id cancel status = %d, want 400", w.Code)
	}

	w = do(t, h, "POST", "/api/batches/cancel", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel batch status = %d", w.Code)
	}
	if n := decode[map[string]int](t, w)["cancelled"]; n != 2 {
		t.Errorf("cancelled = %d, want 2", n)
	}

	waitIdle(t, runner)
	runner.Wait()

	report := decode[bench.Report](t, do(t, h, "GET", "/api/batches/"+id, nil))
	if report.Metrics.Cancelled != 3 {
		t.Errorf("report cancelled = %d, want 3", report.Metrics.Cancelled)
	}
	if w := do(t, h, "POST", "/api/batches/cancel", nil); w.Code != http.StatusConflict {
		t.Errorf("cancel while idle status = %d, want 409", w.Code)
	}
}

func TestAPI_GetBatch_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, 1)
	h := srv.Handler()

	if w := do(t, h, "GET", "/api/batches/00000000-0000-0000-0000-000000000001", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if w := do(t, h, "GET", "/api/batches/nope", nil); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAPI_WithoutStore(t *testing.T) {
	runner := bench.NewRunner(core.NewTaskManager(2, nil), nil, nil)
	srv := NewServer(runner, nil, bench.Workload{Tasks: 2}, nil)
	h := srv.Handler()

	if _, err := runner.Run(context.Background(), "local", bench.Workload{Tasks: 2}); err != nil {
		t.Fatal(err)
	}

	list := decode[map[string]json.RawMessage](t, do(t, h, "GET", "/api/batches", nil))
	var batches []bench.Report
	if err := json.Unmarshal(list["batches"], &batches); err != nil {
		t.Fatal(err)
	}
	if len(batches) != 1 || batches[0].Name != "local" || len(batches[0].Tasks) != 0 {
		t.Errorf("batches = %+v", batches)
	}
}

// ─── Metrics ────────────────────────────────────────────────────────────────

func TestAPI_Metrics(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := promexp.NewMetricsExporter("taskbench", reg, promexp.ExporterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	m := core.NewTaskManager(2, &core.ManagerConfig{Metrics: exporter})
	m.SetName("bench")
	runner := bench.NewRunner(m, nil, nil)
	srv := NewServer(runner, nil, bench.Workload{}, nil)

	if w := do(t, srv.Handler(), "GET", "/metrics", nil); w.Code != http.StatusNotFound {
		t.Errorf("metrics before EnableMetrics = %d, want 404", w.Code)
	}
	srv.EnableMetrics(reg)

	if _, err := runner.Run(context.Background(), "m", bench.Workload{Tasks: 3}); err != nil {
		t.Fatal(err)
	}

	w := do(t, srv.Handler(), "GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `taskbench_batch_total{manager="bench"} 1`) {
		t.Errorf("metrics output missing batch counter:\n%s", w.Body.String())
	}
}
