package orders

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
	r.Route("/orders", func(or chi.Router) {
		or.Post("/", createOrderHandler(svc))
		or.Get("/", listOrdersHandler(svc))

		// La superficie de ventas va antes que {orderID} para que chi no
		// capture "sales" como id.
		or.Get("/sales", listSalesHandler(svc))
		or.Put("/sales/{orderID}/status", sellerStatusHandler(svc))

		or.Get("/{orderID}", getOrderHandler(svc))
		or.Put("/{orderID}/cancel", cancelOrderHandler(svc))
		or.Get("/{orderID}/timeline", orderTimelineHandler(svc))
	})
}

// RegisterAdminRoutes monta la gestión de órdenes bajo /admin.
func RegisterAdminRoutes(r chi.Router, svc *Service) {
	r.Get("/admin/orders", adminListOrdersHandler(svc))
	r.Put("/admin/orders/{orderID}/status", adminStatusHandler(svc))
}

type itemRequest struct {
	ProductID    string  `json:"product_id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"quantity"`
	SellerUserID string  `json:"seller_user_id"`
}

type createOrderRequest struct {
	Items []itemRequest `json:"items"`
}

type statusChangeRequest struct {
	ToStatus string `json:"to_status"`
	Reason   string `json:"reason"`
}

type itemResponse struct {
	ProductID    string  `json:"product_id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"quantity"`
	SellerUserID string  `json:"seller_user_id"`
}

type orderResponse struct {
	ID           string         `json:"id"`
	BuyerUserID  string         `json:"buyer_user_id"`
	SellerUserID string         `json:"seller_user_id"`
	Items        []itemResponse `json:"items"`
	Total        float64        `json:"total"`
	Status       string         `json:"status"`
	StatusReason string         `json:"status_reason,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
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

// createOrderHandler godoc
// @Summary Crear una orden contra un seller
// @Tags orders
// @Router /orders [post]
func createOrderHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		items := make([]ItemInput, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, ItemInput{
				ProductID:    it.ProductID,
				Name:         it.Name,
				Price:        it.Price,
				Quantity:     it.Quantity,
				SellerUserID: it.SellerUserID,
			})
		}

		o, err := svc.Create(r.Context(), actor, items)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, toResponse(o))
	}
}

func listOrdersHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByBuyer(r.Context(), actor.ID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toResponses(items))
	}
}

func listSalesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListBySeller(r.Context(), actor.ID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toResponses(items))
	}
}

// sellerStatusHandler godoc
// @Summary Avanzar el fulfillment de una venta propia
// @Tags orders
// @Router /orders/sales/{orderID}/status [put]
func sellerStatusHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req statusChangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		o, err := svc.SellerTransition(r.Context(), chi.URLParam(r, "orderID"), actor, Status(strings.TrimSpace(req.ToStatus)), req.Reason)
		if err != nil {
			writeOrderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(o))
	}
}

func getOrderHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		o, err := svc.GetForActor(r.Context(), chi.URLParam(r, "orderID"), actor)
		if err != nil {
			writeOrderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(o))
	}
}

func cancelOrderHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req statusChangeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		o, err := svc.CancelByBuyer(r.Context(), chi.URLParam(r, "orderID"), actor, req.Reason)
		if err != nil {
			writeOrderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(o))
	}
}

func orderTimelineHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		events, err := svc.Timeline(r.Context(), chi.URLParam(r, "orderID"), actor)
		if err != nil {
			writeOrderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTimelineResponse(events))
	}
}

func adminListOrdersHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.List(r.Context(), actor)
		if err != nil {
			writeOrderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponses(items))
	}
}

func adminStatusHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req statusChangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		o, err := svc.AdminSetStatus(r.Context(), chi.URLParam(r, "orderID"), actor, Status(strings.TrimSpace(req.ToStatus)), req.Reason)
		if err != nil {
			writeOrderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(o))
	}
}

func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		http.Error(w, "order not found", http.StatusNotFound)
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

func toResponse(o Order) orderResponse {
	items := make([]itemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemResponse{
			ProductID:    it.ProductID,
			Name:         it.Name,
			Price:        it.Price,
			Quantity:     it.Quantity,
			SellerUserID: it.SellerUserID,
		})
	}
	return orderResponse{
		ID:           o.ID,
		BuyerUserID:  o.BuyerUserID,
		SellerUserID: o.SellerUserID,
		Items:        items,
		Total:        o.Total,
		Status:       string(o.Status),
		StatusReason: o.StatusReason,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

func toResponses(items []Order) []orderResponse {
	out := make([]orderResponse, 0, len(items))
	for _, o := range items {
		out = append(out, toResponse(o))
	}
	return out
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
