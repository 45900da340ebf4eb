package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"petsy-backend/internal/domain/workflow"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// AppointmentConfirmer es el entry point del workflow de citas que un pago
// exitoso dispara como side effect.
type AppointmentConfirmer interface {
	ConfirmFromPayment(ctx context.Context, appointmentID string, payer workflow.Actor) error
}

type Service struct {
	repo         Repository
	appointments AppointmentConfirmer
	now          func() time.Time
}

func NewService(repo Repository, appointments AppointmentConfirmer) *Service {
	return &Service{
		repo:         repo,
		appointments: appointments,
		now:          time.Now,
	}
}

type CreateInput struct {
	AppointmentID string
	OrderID       string
	Amount        float64
	Method        string
}

// Create registra el pago. cash_on_delivery se resuelve en el acto y dispara
// la confirmación de la cita; otros métodos quedan pending hasta Confirm.
func (s *Service) Create(ctx context.Context, actor workflow.Actor, in CreateInput) (Payment, error) {
	method := strings.TrimSpace(in.Method)
	if method == "" || in.Amount <= 0 {
		return Payment{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.AppointmentID) == "" && strings.TrimSpace(in.OrderID) == "" {
		return Payment{}, ErrInvalidInput
	}

	now := s.now()
	p := Payment{
		ID:            uuid.NewString(),
		UserID:        actor.ID,
		AppointmentID: strings.TrimSpace(in.AppointmentID),
		OrderID:       strings.TrimSpace(in.OrderID),
		Amount:        in.Amount,
		Method:        method,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return Payment{}, err
	}

	if method == "cash_on_delivery" {
		return s.settle(ctx, p, actor)
	}
	return p, nil
}

// Confirm simula la respuesta del gateway para los pagos pending.
func (s *Service) Confirm(ctx context.Context, id string, actor workflow.Actor) (Payment, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Payment{}, ErrNotFound
	}
	if p.UserID != actor.ID && !actor.IsAdmin() {
		return Payment{}, ErrNotFound
	}
	if p.Status == StatusSucceeded {
		return p, nil
	}
	if p.Status != StatusPending {
		return Payment{}, ErrInvalidInput
	}
	return s.settle(ctx, p, actor)
}

func (s *Service) settle(ctx context.Context, p Payment, actor workflow.Actor) (Payment, error) {
	p.Status = StatusSucceeded
	p.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, p); err != nil {
		return Payment{}, err
	}

	// El pago ya es durable; la confirmación de la cita corre aparte y su
	// falla no revierte el pago.
	if p.AppointmentID != "" && s.appointments != nil {
		_ = s.appointments.ConfirmFromPayment(ctx, p.AppointmentID, actor)
	}

	return p, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Payment, error) {
	return s.repo.ListByUser(ctx, userID)
}
