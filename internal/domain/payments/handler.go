package payments

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
	r.Route("/payments", func(pr chi.Router) {
		pr.Post("/", createPaymentHandler(svc))
		pr.Get("/", listPaymentsHandler(svc))
		pr.Post("/{paymentID}/confirm", confirmPaymentHandler(svc))
	})
}

type createPaymentRequest struct {
	AppointmentID string  `json:"appointment_id"`
	OrderID       string  `json:"order_id"`
	Amount        float64 `json:"amount"`
	Method        string  `json:"method"`
}

type paymentResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	AppointmentID string    `json:"appointment_id,omitempty"`
	OrderID       string    `json:"order_id,omitempty"`
	Amount        float64   `json:"amount"`
	Method        string    `json:"method"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func createPaymentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		p, err := svc.Create(r.Context(), actor, CreateInput{
			AppointmentID: req.AppointmentID,
			OrderID:       req.OrderID,
			Amount:        req.Amount,
			Method:        req.Method,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, toResponse(p))
	}
}

func listPaymentsHandler(svc *Service) http.HandlerFunc {
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

		out := make([]paymentResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toResponse(p))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func confirmPaymentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		p, err := svc.Confirm(r.Context(), chi.URLParam(r, "paymentID"), actor)
		if err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				http.Error(w, "payment not found", http.StatusNotFound)
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusOK, toResponse(p))
	}
}

func actorFrom(r *http.Request) (workflow.Actor, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		return workflow.Actor{}, false
	}
	return workflow.Actor{ID: claims.UserID, Role: workflow.Role(claims.Role)}, true
}

func toResponse(p Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		UserID:        p.UserID,
		AppointmentID: p.AppointmentID,
		OrderID:       p.OrderID,
		Amount:        p.Amount,
		Method:        p.Method,
		Status:        string(p.Status),
		CreatedAt:     p.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
