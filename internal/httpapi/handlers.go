package httpapi

import (
	"net/http"

	"github.com/nhle/smarttask/internal/ai"
	"github.com/nhle/smarttask/internal/model"
	"github.com/nhle/smarttask/internal/notify"
	"github.com/nhle/smarttask/internal/settings"
	"github.com/nhle/smarttask/internal/tasks"
)

// AIHandler serves task analysis.
type AIHandler struct {
	Engine *ai.Engine
}

func (h *AIHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req model.AnalysisRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.Engine.Analyze(r.Context(), req, userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// NotificationHandler serves notification preferences and manual sends.
type NotificationHandler struct {
	Preferences *notify.PreferenceService
	Tasks       *tasks.Service
}

func (h *NotificationHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	pref, err := h.Preferences.Get(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

func (h *NotificationHandler) SavePreferences(w http.ResponseWriter, r *http.Request) {
	var req notify.PreferenceRequest
	if !decode(w, r, &req) {
		return
	}
	pref, err := h.Preferences.Save(r.Context(), userID(r), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

type deliveryResp struct {
	Message string `json:"message"`
	Channel string `json:"channel"`
}

// SendTest sends a test message to the user's destination number.
func (h *NotificationHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.Preferences.SendTest(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deliveryResp{Message: "Test message sent", Channel: string(outcome.Channel)})
}

func (h *NotificationHandler) SendCompletionSummary(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.Tasks.SendCompletionSummary(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deliveryResp{Message: "Completion summary processed", Channel: string(outcome.Channel)})
}

// SettingsHandler serves per-user integration settings.
type SettingsHandler struct {
	Settings *settings.Service
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.Settings.Get(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req settings.Request
	if !decode(w, r, &req) {
		return
	}
	view, err := h.Settings.Update(r.Context(), userID(r), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
