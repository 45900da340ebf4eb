package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"petsy-backend/internal/domain/notifications"
	"petsy-backend/internal/domain/timeline"
	"petsy-backend/internal/domain/workflow"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

type Service struct {
	repo  Repository
	tl    *timeline.Service
	notif *notifications.Service
	now   func() time.Time
}

func NewService(repo Repository, tl *timeline.Service, notif *notifications.Service) *Service {
	return &Service{
		repo:  repo,
		tl:    tl,
		notif: notif,
		now:   time.Now,
	}
}

type ItemInput struct {
	ProductID    string
	Name         string
	Price        float64
	Quantity     int
	SellerUserID string
}

// Create arma la orden de un buyer contra un seller. El pago es simulado,
// así que la orden nace confirmed y entra directo al fulfillment del seller.
func (s *Service) Create(ctx context.Context, actor workflow.Actor, items []ItemInput) (Order, error) {
	if len(items) == 0 {
		return Order{}, ErrInvalidInput
	}

	seller := strings.TrimSpace(items[0].SellerUserID)
	if seller == "" || seller == actor.ID {
		return Order{}, ErrInvalidInput
	}

	var (
		lines []Item
		total float64
	)
	for _, in := range items {
		if strings.TrimSpace(in.ProductID) == "" || in.Quantity <= 0 || in.Price < 0 {
			return Order{}, ErrInvalidInput
		}
		// Una orden por seller: el checkout agrupa antes de llamar acá.
		if strings.TrimSpace(in.SellerUserID) != seller {
			return Order{}, ErrInvalidInput
		}
		lines = append(lines, Item{
			ProductID:    strings.TrimSpace(in.ProductID),
			Name:         strings.TrimSpace(in.Name),
			Price:        in.Price,
			Quantity:     in.Quantity,
			SellerUserID: seller,
		})
		total += in.Price * float64(in.Quantity)
	}

	now := s.now()
	o := Order{
		ID:           uuid.NewString(),
		BuyerUserID:  actor.ID,
		SellerUserID: seller,
		Items:        lines,
		Total:        total,
		Status:       StatusConfirmed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return Order{}, err
	}

	_, _ = s.tl.Record(ctx, timeline.InstanceOrder, o.ID, actor, "create", string(o.Status), "")

	_, _ = s.notif.Notify(ctx, o.SellerUserID, notifications.Input{
		Type:  "order",
		Title: "New order",
		Body:  "You have a new order to fulfill",
		Data: map[string]any{
			"order_id": o.ID,
			"status":   string(o.Status),
			"action":   "create",
		},
	})

	return o, nil
}

// SellerTransition es la ruta de ventas: ownership estricto sobre
// seller_user_id; ni el buyer ni otro seller pasan este guard. Acá el 403
// es plano: la existencia de la orden no es información sensible del lado
// del marketplace.
func (s *Service) SellerTransition(ctx context.Context, id string, actor workflow.Actor, to Status, reason string) (Order, error) {
	if !sellerStatuses[to] {
		return Order{}, workflow.ErrValidationFailed
	}

	for attempt := 0; attempt < 2; attempt++ {
		o, err := s.load(ctx, id)
		if err != nil {
			return Order{}, err
		}

		if o.SellerUserID != actor.ID {
			return Order{}, workflow.ErrForbidden
		}

		out, err := s.applyTransition(ctx, o, actor, to, reason)
		if errors.Is(err, workflow.ErrStaleState) {
			continue
		}
		return out, err
	}
	return Order{}, workflow.ErrStaleState
}

// CancelByBuyer es el edge del requester: solo antes del envío.
func (s *Service) CancelByBuyer(ctx context.Context, id string, actor workflow.Actor, reason string) (Order, error) {
	for attempt := 0; attempt < 2; attempt++ {
		o, err := s.load(ctx, id)
		if err != nil {
			return Order{}, err
		}

		if o.BuyerUserID != actor.ID && !actor.IsAdmin() {
			return Order{}, workflow.ErrNotFound
		}
		if o.Status == StatusShipped {
			// Ya salió: cancelar es cosa del seller.
			return Order{}, workflow.ErrInvalidTransition
		}

		out, err := s.applyTransition(ctx, o, actor, StatusCancelled, reason)
		if errors.Is(err, workflow.ErrStaleState) {
			continue
		}
		return out, err
	}
	return Order{}, workflow.ErrStaleState
}

// AdminSetStatus salta el ownership pero nunca la validez del edge.
func (s *Service) AdminSetStatus(ctx context.Context, id string, actor workflow.Actor, to Status, reason string) (Order, error) {
	if !actor.IsAdmin() {
		return Order{}, workflow.ErrForbidden
	}

	for attempt := 0; attempt < 2; attempt++ {
		o, err := s.load(ctx, id)
		if err != nil {
			return Order{}, err
		}

		out, err := s.applyTransition(ctx, o, actor, to, reason)
		if errors.Is(err, workflow.ErrStaleState) {
			continue
		}
		return out, err
	}
	return Order{}, workflow.ErrStaleState
}

func (s *Service) applyTransition(ctx context.Context, o Order, actor workflow.Actor, to Status, reason string) (Order, error) {
	if !transitions.Can(o.Status, to) {
		return Order{}, workflow.ErrInvalidTransition
	}

	upd := TransitionUpdate{}
	if r := strings.TrimSpace(reason); r != "" {
		upd.StatusReason = &r
	}

	if err := s.repo.UpdateStatus(ctx, o.ID, o.Status, to, upd, s.now()); err != nil {
		return Order{}, err
	}

	updated, err := s.load(ctx, o.ID)
	if err != nil {
		return Order{}, err
	}

	_, _ = s.tl.Record(ctx, timeline.InstanceOrder, updated.ID, actor, "status_change", string(updated.Status), reason)

	s.notifyTransition(ctx, updated, actor)

	return updated, nil
}

func (s *Service) notifyTransition(ctx context.Context, o Order, actor workflow.Actor) {
	data := map[string]any{
		"order_id": o.ID,
		"status":   string(o.Status),
	}
	if o.StatusReason != "" {
		data["status_reason"] = o.StatusReason
	}

	titles := map[Status]string{
		StatusConfirmed: "Order confirmed",
		StatusShipped:   "Order shipped",
		StatusDelivered: "Order delivered",
		StatusCancelled: "Order cancelled",
	}
	in := notifications.Input{
		Type:  "order",
		Title: titles[o.Status],
		Body:  "Order status updated",
		Data:  data,
	}

	// El que movió la orden no se auto-notifica: buyer y seller se avisan
	// mutuamente; los cambios de admin avisan a ambos.
	if actor.ID != o.BuyerUserID {
		_, _ = s.notif.Notify(ctx, o.BuyerUserID, in)
	}
	if actor.ID != o.SellerUserID {
		_, _ = s.notif.Notify(ctx, o.SellerUserID, in)
	}
}

func (s *Service) GetForActor(ctx context.Context, id string, actor workflow.Actor) (Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !actor.IsAdmin() && actor.ID != o.BuyerUserID && actor.ID != o.SellerUserID {
		return Order{}, workflow.ErrNotFound
	}
	return o, nil
}

func (s *Service) Timeline(ctx context.Context, id string, actor workflow.Actor) ([]timeline.Event, error) {
	if _, err := s.GetForActor(ctx, id, actor); err != nil {
		return nil, err
	}
	return s.tl.ListByInstance(ctx, timeline.InstanceOrder, id)
}

func (s *Service) ListByBuyer(ctx context.Context, buyerID string) ([]Order, error) {
	return s.repo.ListByBuyer(ctx, buyerID)
}

func (s *Service) ListBySeller(ctx context.Context, sellerID string) ([]Order, error) {
	return s.repo.ListBySeller(ctx, sellerID)
}

func (s *Service) List(ctx context.Context, actor workflow.Actor) ([]Order, error) {
	if !actor.IsAdmin() {
		return nil, workflow.ErrForbidden
	}
	return s.repo.List(ctx)
}

func (s *Service) load(ctx context.Context, id string) (Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Order{}, workflow.ErrNotFound
	}
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Order{}, workflow.ErrNotFound
	}
	return o, nil
}
