package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	httpmiddleware "github.com/wolfman30/homevisit-scheduler/internal/http/middleware"
	"github.com/wolfman30/homevisit-scheduler/internal/identity"
	"github.com/wolfman30/homevisit-scheduler/pkg/logging"
)

// Handler exposes the appointment operations over HTTP.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates an appointments HTTP handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the endpoints. The router must already run
// JWTAuth so a principal is in the request context.
func (h *Handler) RegisterRoutes(r chi.Router) {
	patient := httpmiddleware.RequireRoles(identity.RolePatient)
	pro := httpmiddleware.RequireRoles(identity.RoleProfessional)
	patientOrPro := httpmiddleware.RequireRoles(identity.RolePatient, identity.RoleProfessional)
	proOrAdmin := httpmiddleware.RequireRoles(identity.RoleProfessional, identity.RoleAdmin)

	r.Route("/appointments", func(r chi.Router) {
		r.With(patient).Post("/", h.create)
		r.With(proOrAdmin).Get("/patient/{id}", h.listByPatient)
		r.With(patientOrPro).Get("/professional/{id}", h.listByProfessional)
		r.Get("/{id}", h.get)
		r.With(patientOrPro).Delete("/{id}", h.cancel)
		r.With(pro).Put("/{id}", h.modify)
	})
	r.Route("/professionals", func(r chi.Router) {
		r.With(patientOrPro).Post("/search", h.search)
		r.With(patientOrPro).Get("/{id}/slots", h.slots)
		r.With(pro).Get("/{id}/route", h.route)
		r.With(proOrAdmin).Get("/{id}/stats", h.stats)
		r.With(pro).Get("/{id}/patient-map", h.patientMap)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	view, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, "create", err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	view, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	current, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, "cancel", err)
		return
	}
	if err := CheckTransition(current.Status, StatusCancelled); err != nil {
		h.writeError(w, "cancel", err)
		return
	}
	view, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		h.writeError(w, "cancel", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) modify(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ModifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Status != nil {
		target, err := ParseStatus(*req.Status)
		if err != nil {
			h.writeError(w, "modify", err)
			return
		}
		current, err := h.svc.Get(r.Context(), id)
		if err != nil {
			h.writeError(w, "modify", err)
			return
		}
		if err := CheckTransition(current.Status, target); err != nil {
			h.writeError(w, "modify", err)
			return
		}
	}
	view, err := h.svc.Modify(r.Context(), id, req)
	if err != nil {
		h.writeError(w, "modify", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) listByPatient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	views, err := h.svc.ListByPatient(r.Context(), id)
	if err != nil {
		h.writeError(w, "list by patient", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": views, "count": len(views)})
}

func (h *Handler) listByProfessional(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	views, err := h.svc.ListByProfessional(r.Context(), id)
	if err != nil {
		h.writeError(w, "list by professional", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": views, "count": len(views)})
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	var q SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	results, err := h.svc.SearchProfessionals(r.Context(), q)
	if err != nil {
		h.writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"professionals": results, "count": len(results)})
}

func (h *Handler) slots(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	day, err := time.ParseInLocation(time.DateOnly, r.URL.Query().Get("date"), h.svc.Location())
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	seq, err := h.svc.AvailableSlots(r.Context(), id, day)
	if err != nil {
		h.writeError(w, "slots", err)
		return
	}
	slots := slices.Collect(seq)
	if slots == nil {
		slots = []time.Time{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"professional_id": id,
		"date":            day.Format(time.DateOnly),
		"slots":           slots,
	})
}

func (h *Handler) route(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	route, err := h.svc.OptimizeRoute(r.Context(), id)
	if err != nil {
		h.writeError(w, "route", err)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	stats, err := h.svc.WeeklyStats(r.Context(), id)
	if err != nil {
		h.writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) patientMap(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entries, err := h.svc.PatientMap(r.Context(), id)
	if err != nil {
		h.writeError(w, "patient map", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patients": entries, "count": len(entries)})
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("appointments handler: "+op, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: code, Message: err.Error()})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNoProfessionalAvailable):
		return http.StatusNotFound, "no_professional_available"
	case errors.Is(err, ErrSlotTaken):
		return http.StatusConflict, "slot_taken"
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "appointment_not_found"
	case errors.Is(err, identity.ErrPatientNotFound):
		return http.StatusNotFound, "patient_not_found"
	case errors.Is(err, identity.ErrProfessionalNotFound):
		return http.StatusNotFound, "professional_not_found"
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, ErrDependency):
		return http.StatusBadGateway, "dependency_failure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
