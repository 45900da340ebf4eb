package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"petsy-backend/internal/domain/workflow"
	"petsy-backend/internal/middleware"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/appointments", func(ar chi.Router) {
		ar.Post("/", createAppointmentHandler(svc))
		ar.Get("/", listAppointmentsHandler(svc))
		ar.Get("/{appointmentID}", getAppointmentHandler(svc))
		ar.Put("/{appointmentID}/cancel", cancelAppointmentHandler(svc))
		ar.Get("/{appointmentID}/timeline", appointmentTimelineHandler(svc))
	})

	r.Route("/vet/appointments", func(vr chi.Router) {
		vr.Get("/", providerAppointmentsHandler(svc))
		vr.Put("/{appointmentID}", transitionAppointmentHandler(svc))
	})
}

type createAppointmentRequest struct {
	PetID       string    `json:"pet_id"`
	ProviderID  string    `json:"provider_id"`
	ServiceType string    `json:"service_type"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Notes       string    `json:"notes"`
}

type appointmentTransitionRequest struct {
	Action       string `json:"action"`
	StatusReason string `json:"status_reason"`
}

type cancelAppointmentRequest struct {
	StatusReason string `json:"status_reason"`
}

type appointmentResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	PetID        string    `json:"pet_id"`
	ProviderID   string    `json:"provider_id"`
	ServiceType  string    `json:"service_type,omitempty"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	Notes        string    `json:"notes,omitempty"`
	StatusReason string    `json:"status_reason,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type timelineEventResponse struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	ActorRole string    `json:"actor_role"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// createAppointmentHandler godoc
// @Summary Agendar una cita con un provider
// @Tags appointments
// @Router /appointments [post]
func createAppointmentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		a, err := svc.Create(r.Context(), actor, CreateInput{
			PetID:       req.PetID,
			ProviderID:  req.ProviderID,
			ServiceType: req.ServiceType,
			ScheduledAt: req.ScheduledAt,
			Notes:       req.Notes,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusCreated, toResponse(a))
	}
}

func listAppointmentsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByUser(r.Context(), actor.ID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toResponses(items))
	}
}

func getAppointmentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		a, err := svc.GetForActor(r.Context(), chi.URLParam(r, "appointmentID"), actor)
		if err != nil {
			writeTransitionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(a))
	}
}

func cancelAppointmentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// Body opcional: solo el motivo.
		var req cancelAppointmentRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		a, err := svc.Transition(r.Context(), chi.URLParam(r, "appointmentID"), actor, TransitionInput{
			Action:       ActionCancel,
			StatusReason: req.StatusReason,
		})
		if err != nil {
			writeTransitionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(a))
	}
}

func appointmentTimelineHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		events, err := svc.Timeline(r.Context(), chi.URLParam(r, "appointmentID"), actor)
		if err != nil {
			writeTransitionError(w, err)
			return
		}

		out := make([]timelineEventResponse, 0, len(events))
		for _, e := range events {
			out = append(out, timelineEventResponse{
				ID:        e.ID,
				ActorID:   e.ActorID,
				ActorRole: string(e.ActorRole),
				Action:    e.Action,
				Status:    e.Status,
				Notes:     e.Notes,
				CreatedAt: e.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func providerAppointmentsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !actor.IsProvider() && !actor.IsAdmin() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		items, err := svc.ListByProvider(r.Context(), actor.ID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toResponses(items))
	}
}

func transitionAppointmentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req appointmentTransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		a, err := svc.Transition(r.Context(), chi.URLParam(r, "appointmentID"), actor, TransitionInput{
			Action:       Action(strings.TrimSpace(req.Action)),
			StatusReason: req.StatusReason,
		})
		if err != nil {
			writeTransitionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(a))
	}
}

func writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case errors.Is(err, workflow.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, workflow.ErrInvalidTransition):
		http.Error(w, "Invalid transition", http.StatusBadRequest)
	case errors.Is(err, workflow.ErrValidationFailed):
		http.Error(w, "validation failed", http.StatusBadRequest)
	case errors.Is(err, workflow.ErrStaleState):
		http.Error(w, "conflicting update", http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func actorFrom(r *http.Request) (workflow.Actor, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		return workflow.Actor{}, false
	}
	return workflow.Actor{ID: claims.UserID, Role: workflow.Role(claims.Role)}, true
}

func toResponse(a Appointment) appointmentResponse {
	return appointmentResponse{
		ID:           a.ID,
		UserID:       a.UserID,
		PetID:        a.PetID,
		ProviderID:   a.ProviderID,
		ServiceType:  a.ServiceType,
		ScheduledAt:  a.ScheduledAt,
		Notes:        a.Notes,
		StatusReason: a.StatusReason,
		Status:       string(a.Status),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func toResponses(items []Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(items))
	for _, a := range items {
		out = append(out, toResponse(a))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
