package conversations

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"petsy-backend/internal/domain/notifications"
	"petsy-backend/internal/realtime"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

type Service struct {
	repo  Repository
	notif *notifications.Service
	push  notifications.Pusher
	now   func() time.Time
}

func NewService(repo Repository, notif *notifications.Service, push notifications.Pusher) *Service {
	return &Service{
		repo:  repo,
		notif: notif,
		push:  push,
		now:   time.Now,
	}
}

// Start devuelve el hilo existente entre ambos usuarios o crea uno nuevo.
func (s *Service) Start(ctx context.Context, userID, otherUserID string) (Conversation, error) {
	userID = strings.TrimSpace(userID)
	otherUserID = strings.TrimSpace(otherUserID)
	if userID == "" || otherUserID == "" || userID == otherUserID {
		return Conversation{}, ErrInvalidInput
	}

	if c, err := s.repo.FindBetween(ctx, userID, otherUserID); err == nil {
		return c, nil
	}

	now := s.now()
	c := Conversation{
		ID:             uuid.NewString(),
		ParticipantIDs: []string{userID, otherUserID},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateConversation(ctx, c); err != nil {
		return Conversation{}, err
	}
	return c, nil
}

type Summary struct {
	Conversation Conversation
	UnreadCount  int
}

func (s *Service) ListMine(ctx context.Context, userID string) ([]Summary, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(items))
	for _, c := range items {
		unread, err := s.repo.CountUnread(ctx, c.ID, userID)
		if err != nil {
			unread = 0
		}
		out = append(out, Summary{Conversation: c, UnreadCount: unread})
	}
	return out, nil
}

// Messages lista el hilo para un participante y marca como leídos los
// mensajes entrantes; el emisor recibe messages_read por el canal en vivo.
func (s *Service) Messages(ctx context.Context, conversationID, userID string, limit int) ([]Message, error) {
	c, err := s.membership(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	marked, err := s.repo.MarkMessagesRead(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if marked > 0 {
		s.push.SendToUser(c.Peer(userID), realtime.NewEvent("messages_read", map[string]any{
			"conversation_id": conversationID,
			"user_id":         userID,
		}))
	}

	return s.repo.ListMessages(ctx, conversationID, limit)
}

// Send registra el mensaje, actualiza el hilo y notifica al peer: record
// durable tipo message con push new_message, más conversations_updated.
func (s *Service) Send(ctx context.Context, conversationID, senderID, content string) (Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, ErrInvalidInput
	}

	c, err := s.membership(ctx, conversationID, senderID)
	if err != nil {
		return Message{}, err
	}

	now := s.now()
	m := Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		IsRead:         false,
		CreatedAt:      now,
	}
	if err := s.repo.CreateMessage(ctx, m); err != nil {
		return Message{}, err
	}

	c.LastMessage = content
	c.LastMessageAt = &now
	c.UpdatedAt = now
	if err := s.repo.UpdateConversation(ctx, c); err != nil {
		return Message{}, err
	}

	peer := c.Peer(senderID)
	_, _ = s.notif.Notify(ctx, peer, notifications.Input{
		Type:     "message",
		Title:    "New message",
		Body:     content,
		PushType: "new_message",
		Data: map[string]any{
			"conversation_id": conversationID,
			"message_id":      m.ID,
			"sender_id":       senderID,
		},
	})
	s.push.SendToUser(peer, realtime.NewEvent("conversations_updated", map[string]any{
		"conversation_id": conversationID,
	}))

	return m, nil
}

// Participants implementa realtime.ConversationDirectory para el gateway.
func (s *Service) Participants(ctx context.Context, conversationID string) ([]string, error) {
	c, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, ErrNotFound
	}
	return c.ParticipantIDs, nil
}

func (s *Service) membership(ctx context.Context, conversationID, userID string) (Conversation, error) {
	c, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return Conversation{}, ErrNotFound
	}
	// Sin membresía la conversación "no existe" para el actor.
	if !c.HasParticipant(userID) {
		return Conversation{}, ErrNotFound
	}
	return c, nil
}
