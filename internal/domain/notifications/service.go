package notifications

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"petsy-backend/internal/realtime"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// Pusher es el canal en vivo (lo implementa realtime.Registry).
type Pusher interface {
	SendToUser(userID string, ev realtime.Event)
}

// RoleDirectory resuelve destinatarios para NotifyRole.
type RoleDirectory interface {
	IDsByRole(ctx context.Context, role string) ([]string, error)
}

// Publisher es el broker opcional (rabbitmq). Puede ser nil.
type Publisher interface {
	Publish(ctx context.Context, key string, payload any) error
}

type Service struct {
	repo      Repository
	pusher    Pusher
	roles     RoleDirectory
	publisher Publisher
	log       zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, pusher Pusher, roles RoleDirectory, publisher Publisher, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		pusher:    pusher,
		roles:     roles,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

type Input struct {
	Type  string
	Title string
	Body  string
	Data  map[string]any

	// PushType permite que el envelope en vivo use un tipo del contrato del
	// gateway (ej. new_message) distinto del tipo durable. Vacío = Type.
	PushType string
}

// Notify escribe el record durable y después empuja por el canal en vivo.
// El orden write-then-push es invariante duro: un cliente que refresca su
// lista tras recibir el push siempre encuentra el record. La falla de push
// nunca se propaga: la durabilidad ya está garantizada.
func (s *Service) Notify(ctx context.Context, recipientID string, in Input) (Notification, error) {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" || strings.TrimSpace(in.Type) == "" {
		return Notification{}, ErrInvalidInput
	}

	// Copia propia: el record durable no puede quedar aliasado al map del
	// caller, que puede mutarlo después de Notify.
	data := make(map[string]any, len(in.Data))
	for k, v := range in.Data {
		data[k] = v
	}

	n := Notification{
		ID:        uuid.NewString(),
		UserID:    recipientID,
		Type:      in.Type,
		Title:     strings.TrimSpace(in.Title),
		Body:      strings.TrimSpace(in.Body),
		Data:      data,
		IsRead:    false,
		CreatedAt: s.now(),
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return Notification{}, err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, "notifications."+n.Type, n); err != nil {
			s.log.Warn().Err(err).Str("type", n.Type).Msg("broker publish failed")
		}
	}

	pushType := in.PushType
	if pushType == "" {
		pushType = n.Type
	}
	payload := map[string]any{
		"notification_id": n.ID,
		"title":           n.Title,
		"body":            n.Body,
	}
	for k, v := range data {
		payload[k] = v
	}
	s.pusher.SendToUser(recipientID, realtime.NewEvent(pushType, payload))

	return n, nil
}

// NotifyRole hace fan-out a todos los usuarios con el rol dado. Cada record
// es independiente: la falla de uno no impide los demás.
func (s *Service) NotifyRole(ctx context.Context, role string, in Input) error {
	ids, err := s.roles.IDsByRole(ctx, role)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if _, err := s.Notify(ctx, id, in); err != nil {
			s.log.Warn().Err(err).Str("recipient", id).Str("role", role).Msg("notify failed, continuing fan-out")
		}
	}
	return nil
}

func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

// MarkRead solo para el destinatario; para el resto el record no existe.
func (s *Service) MarkRead(ctx context.Context, id, userID string) (Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Notification{}, ErrNotFound
	}
	if n.UserID != userID {
		return Notification{}, ErrNotFound
	}

	if n.IsRead {
		return n, nil
	}
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return Notification{}, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrInvalidInput
	}
	return s.repo.MarkAllRead(ctx, userID)
}
