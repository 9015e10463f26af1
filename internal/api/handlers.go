package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Swind/go-task-manager/core"
	"github.com/Swind/go-task-manager/internal/bench"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ─── Manager state ──────────────────────────────────────────────────────────

type statsResponse struct {
	Name           string    `json:"name"`
	MaxConcurrency int       `json:"max_concurrency"`
	Pending        int       `json:"pending"`
	Active         int       `json:"active"`
	Completed      int       `json:"completed"`
	Failed         int       `json:"failed"`
	Cancelled      int       `json:"cancelled"`
	PeakActive     int       `json:"peak_active"`
	Running        bool      `json:"running"`
	LastTaskName   string    `json:"last_task_name,omitempty"`
	LastTaskAt     time.Time `json:"last_task_at,omitzero"`
}

type taskResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Index     int       `json:"index"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Attempts  int       `json:"attempts"`
	StartedAt time.Time `json:"started_at,omitzero"`
	Duration  string    `json:"duration,omitempty"`
	Panicked  bool      `json:"panicked,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.runner.Manager().Stats()
	writeJSON(w, http.StatusOK, statsResponse{
		Name:           st.Name,
		MaxConcurrency: st.MaxConcurrency,
		Pending:        st.Pending,
		Active:         st.Active,
		Completed:      st.Completed,
		Failed:         st.Failed,
		Cancelled:      st.Cancelled,
		PeakActive:     st.PeakActive,
		Running:        st.Running,
		LastTaskName:   st.LastTaskName,
		LastTaskAt:     st.LastTaskAt,
	})
}

func (s *Server) handleRecentTasks(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records := s.runner.Manager().RecentTasks(limit)
	out := make([]taskResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, taskResponse{
			ID:        rec.TaskID.String(),
			Name:      rec.Name,
			Index:     rec.Index,
			Status:    string(rec.Status),
			Error:     rec.Error,
			Attempts:  rec.Attempts,
			StartedAt: rec.StartedAt,
			Duration:  rec.Duration.String(),
			Panicked:  rec.Panicked,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": out})
}

func (s *Server) handleActiveTasks(w http.ResponseWriter, r *http.Request) {
	m := s.runner.Manager()
	writeJSON(w, http.StatusOK, map[string]any{
		"active":  itemsResponse(m.ActiveTasks()),
		"pending": itemsResponse(m.PendingTasks()),
	})
}

func itemsResponse(items []core.TaskItem) []taskResponse {
	out := make([]taskResponse, 0, len(items))
	for _, item := range items {
		out = append(out, taskResponse{
			ID:        item.ID.String(),
			Name:      item.Name,
			Index:     item.Index,
			Status:    string(item.Status),
			Attempts:  item.Attempts,
			StartedAt: item.StartTime,
		})
	}
	return out
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseTaskID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.runner.Manager().CancelTask(id) {
		writeError(w, http.StatusNotFound, "task not pending or active: "+id.String())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id.String(), "cancelled": true})
}

// ─── Batches ────────────────────────────────────────────────────────────────

// startBatchRequest overrides the server's default workload. Omitted fields
// keep their defaults.
type startBatchRequest struct {
	Name        string   `json:"name"`
	Tasks       *int     `json:"tasks"`
	MinDelay    string   `json:"min_delay"`
	MaxDelay    string   `json:"max_delay"`
	FailureRate *float64 `json:"failure_rate"`
	PanicRate   *float64 `json:"panic_rate"`
	Seed        *uint64  `json:"seed"`
}

func (req startBatchRequest) workload(defaults bench.Workload) (bench.Workload, error) {
	w := defaults
	if req.Tasks != nil {
		w.Tasks = *req.Tasks
	}
	if req.MinDelay != "" {
		d, err := time.ParseDuration(req.MinDelay)
		if err != nil {
			return w, fmt.Errorf("min_delay: %w", err)
		}
		w.MinDelay = d
	}
	if req.MaxDelay != "" {
		d, err := time.ParseDuration(req.MaxDelay)
		if err != nil {
			return w, fmt.Errorf("max_delay: %w", err)
		}
		w.MaxDelay = d
	}
	if req.FailureRate != nil {
		w.FailureRate = *req.FailureRate
	}
	if req.PanicRate != nil {
		w.PanicRate = *req.PanicRate
	}
	if req.Seed != nil {
		w.Seed = *req.Seed
	}
	return w, w.Validate()
}

func (s *Server) handleStartBatch(w http.ResponseWriter, r *http.Request) {
	var req startBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	workload, err := req.workload(s.defaults)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := req.Name
	if name == "" {
		name = s.name
	}

	id, err := s.runner.Start(s.baseCtx, name, workload)
	if errors.Is(err, core.ErrBatchInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":     id.String(),
		"name":   name,
		"tasks":  workload.Tasks,
		"status": "running",
	})
}

func (s *Server) handleCancelBatch(w http.ResponseWriter, r *http.Request) {
	m := s.runner.Manager()
	if !m.IsRunning() {
		writeError(w, http.StatusConflict, "no batch in progress")
		return
	}
	n := m.PendingTaskCount() + m.ActiveTaskCount()
	m.CancelAllTasks()
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": n})
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var reports []bench.Report
	if s.store != nil {
		reports, err = s.store.ListReports(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	} else if last, ok := s.runner.Last(); ok {
		summary := *last
		summary.Tasks = nil
		reports = append(reports, summary)
	}
	if reports == nil {
		reports = []bench.Report{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"running": s.runner.Busy(),
		"batches": reports,
	})
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid batch id")
		return
	}

	if last, ok := s.runner.Last(); ok && last.ID == id {
		writeJSON(w, http.StatusOK, last)
		return
	}
	if s.store != nil {
		report, err := s.store.Report(r.Context(), id)
		if err == nil {
			writeJSON(w, http.StatusOK, report)
			return
		}
		s.logger.Debug("report lookup failed", core.F("id", id.String()), core.F("error", err))
	}
	writeError(w, http.StatusNotFound, "batch not found: "+id.String())
}

func queryLimit(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer, got %q", raw)
	}
	return n, nil
}
