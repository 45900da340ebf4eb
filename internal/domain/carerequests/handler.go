package carerequests

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"petsy-backend/internal/domain/timeline"
	"petsy-backend/internal/domain/workflow"
	"petsy-backend/internal/middleware"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/care-requests", func(cr chi.Router) {
		cr.Post("/", createCareRequestHandler(svc))
		cr.Get("/", listCareRequestsHandler(svc))
		cr.Get("/{requestID}", getCareRequestHandler(svc))
		cr.Put("/{requestID}/cancel", cancelCareRequestHandler(svc))
		cr.Get("/{requestID}/timeline", careRequestTimelineHandler(svc))
	})

	// Superficie del provider: inbox + transiciones clínicas.
	r.Route("/vet/care-requests", func(vr chi.Router) {
		vr.Get("/", providerInboxHandler(svc))
		vr.Put("/{requestID}", transitionCareRequestHandler(svc))
	})
}

type createCareRequestRequest struct {
	PetID       string `json:"pet_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

type transitionRequest struct {
	Action       string `json:"action"`
	Diagnosis    string `json:"diagnosis"`
	Prescription string `json:"prescription"`
	Notes        string `json:"notes"`
}

type careRequestResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	PetID        string    `json:"pet_id"`
	ProviderID   string    `json:"provider_id,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Priority     string    `json:"priority"`
	Diagnosis    string    `json:"diagnosis,omitempty"`
	Prescription string    `json:"prescription,omitempty"`
	Notes        string    `json:"notes,omitempty"`
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

// createCareRequestHandler godoc
// @Summary Crear un care request para una mascota propia
// @Tags care-requests
// @Router /care-requests [post]
func createCareRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createCareRequestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		cr, err := svc.Create(r.Context(), actor, CreateInput{
			PetID:       req.PetID,
			Title:       req.Title,
			Description: req.Description,
			Priority:    req.Priority,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusCreated, toResponse(cr))
	}
}

func listCareRequestsHandler(svc *Service) http.HandlerFunc {
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

		out := make([]careRequestResponse, 0, len(items))
		for _, cr := range items {
			out = append(out, toResponse(cr))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getCareRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		cr, err := svc.GetForActor(r.Context(), chi.URLParam(r, "requestID"), actor)
		if err != nil {
			writeTransitionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(cr))
	}
}

// cancelCareRequestHandler es el único verbo de transición del requester.
func cancelCareRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		cr, err := svc.Transition(r.Context(), chi.URLParam(r, "requestID"), actor, TransitionInput{Action: ActionCancel})
		if err != nil {
			writeTransitionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(cr))
	}
}

func careRequestTimelineHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		events, err := svc.Timeline(r.Context(), chi.URLParam(r, "requestID"), actor)
		if err != nil {
			writeTransitionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTimelineResponse(events))
	}
}

// providerInboxHandler lista pendientes sin asignar + las propias.
// Solo providers y admins; el gate acá es 403 plano, el recurso es la lista.
func providerInboxHandler(svc *Service) http.HandlerFunc {
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

		items, err := svc.ListForProvider(r.Context(), actor.ID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]careRequestResponse, 0, len(items))
		for _, cr := range items {
			out = append(out, toResponse(cr))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// transitionCareRequestHandler godoc
// @Summary Aplicar una acción de provider (accept/start/complete/cancel)
// @Tags care-requests
// @Router /vet/care-requests/{requestID} [put]
func transitionCareRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req transitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		cr, err := svc.Transition(r.Context(), chi.URLParam(r, "requestID"), actor, TransitionInput{
			Action:       Action(strings.TrimSpace(req.Action)),
			Diagnosis:    req.Diagnosis,
			Prescription: req.Prescription,
			Notes:        req.Notes,
		})
		if err != nil {
			writeTransitionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(cr))
	}
}

func writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		http.Error(w, "care request not found", http.StatusNotFound)
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

func toResponse(cr CareRequest) careRequestResponse {
	return careRequestResponse{
		ID:           cr.ID,
		UserID:       cr.UserID,
		PetID:        cr.PetID,
		ProviderID:   cr.ProviderID,
		Title:        cr.Title,
		Description:  cr.Description,
		Priority:     cr.Priority,
		Diagnosis:    cr.Diagnosis,
		Prescription: cr.Prescription,
		Notes:        cr.Notes,
		Status:       string(cr.Status),
		CreatedAt:    cr.CreatedAt,
		UpdatedAt:    cr.UpdatedAt,
	}
}

func toTimelineResponse(events []timeline.Event) []timelineEventResponse {
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
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
