// Package httpapi exposes the task, AI, notification and settings services
// over a JSON HTTP API.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nhle/smarttask/internal/ai"
	"github.com/nhle/smarttask/internal/model"
	"github.com/nhle/smarttask/internal/notify"
	"github.com/nhle/smarttask/internal/settings"
	"github.com/nhle/smarttask/internal/tasks"
)

// Services are the use-case layers the API serves.
type Services struct {
	Engine      *ai.Engine
	Tasks       *tasks.Service
	Preferences *notify.PreferenceService
	Settings    *settings.Service
}

// NewRouter builds the API routes. Everything except /health requires a user header.
func NewRouter(cfg model.HTTPConfig, svc Services) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(CORS(cfg.CORSAllowedOrigins))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	aiH := &AIHandler{Engine: svc.Engine}
	taskH := &TaskHandler{Tasks: svc.Tasks}
	notifyH := &NotificationHandler{Preferences: svc.Preferences, Tasks: svc.Tasks}
	settingsH := &SettingsHandler{Settings: svc.Settings}

	r.Group(func(r chi.Router) {
		r.Use(RequireUser)

		r.Post("/ai/analyze", aiH.Analyze)

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", taskH.Create)
			r.Post("/ai", taskH.CreateWithAI)
			r.Get("/", taskH.List)
			r.Get("/overdue", taskH.Overdue)
			r.Get("/{id}", taskH.Get)
			r.Put("/{id}", taskH.Update)
			r.Delete("/{id}", taskH.Delete)
			r.Get("/{id}/subtasks", taskH.Subtasks)
		})

		r.Post("/reports/productivity", taskH.ProductivityReport)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/preferences", notifyH.GetPreferences)
			r.Post("/preferences", notifyH.SavePreferences)
			r.Post("/test", notifyH.SendTest)
			r.Post("/completion-summary", notifyH.SendCompletionSummary)
		})

		r.Get("/settings", settingsH.Get)
		r.Put("/settings", settingsH.Update)
	})

	return r
}
