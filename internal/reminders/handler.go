package reminders

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/homevisit-scheduler/pkg/logging"
)

// Handler exposes manual scheduler triggers for administrators.
type Handler struct {
	runner *Runner
	logger *logging.Logger
}

func NewHandler(runner *Runner, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{runner: runner, logger: logger}
}

// RegisterRoutes mounts the triggers. Expected under /api/admin/reminders.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/dispatch", h.dispatch)
	r.Post("/rollover", h.rollover)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	report, err := h.runner.TriggerDispatch(r.Context())
	h.respond(w, "dispatch", report, err)
}

func (h *Handler) rollover(w http.ResponseWriter, r *http.Request) {
	report, err := h.runner.TriggerRollover(r.Context())
	h.respond(w, "rollover", report, err)
}

func (h *Handler) respond(w http.ResponseWriter, task string, report any, err error) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case errors.Is(err, ErrPassInProgress):
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "pass_in_progress", "task": task})
	case err != nil:
		h.logger.Error("reminders handler: "+task, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal_error", "task": task})
	default:
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(report)
	}
}
