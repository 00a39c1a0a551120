package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nhle/smarttask/internal/model"
	"github.com/nhle/smarttask/internal/tasks"
)

const defaultReportDays = 7

// TaskHandler serves task CRUD, AI-assisted creation and reports.
type TaskHandler struct {
	Tasks *tasks.Service
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req tasks.Request
	if !decode(w, r, &req) {
		return
	}
	task, err := h.Tasks.Create(r.Context(), userID(r), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// CreateWithAI creates a task from an analysis of its description.
func (h *TaskHandler) CreateWithAI(w http.ResponseWriter, r *http.Request) {
	var req tasks.Request
	if !decode(w, r, &req) {
		return
	}
	task, err := h.Tasks.CreateWithAI(r.Context(), userID(r), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// List accepts an optional ?status= filter.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	status := model.TaskStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	list, err := h.Tasks.List(r.Context(), userID(r), status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.Tasks.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req tasks.Request
	if !decode(w, r, &req) {
		return
	}
	task, err := h.Tasks.Update(r.Context(), userID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Tasks.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	list, err := h.Tasks.Overdue(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *TaskHandler) Subtasks(w http.ResponseWriter, r *http.Request) {
	list, err := h.Tasks.Subtasks(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

type reportReq struct {
	Days int `json:"days"`
}

// ProductivityReport covers the last N days (7 when the body omits it).
func (h *TaskHandler) ProductivityReport(w http.ResponseWriter, r *http.Request) {
	req := reportReq{Days: defaultReportDays}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	if req.Days <= 0 {
		writeError(w, http.StatusBadRequest, "days must be positive")
		return
	}

	since := time.Now().AddDate(0, 0, -req.Days)
	report, err := h.Tasks.ProductivityReport(r.Context(), userID(r), since)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func nonNil(list []model.Task) []model.Task {
	if list == nil {
		return []model.Task{}
	}
	return list
}
