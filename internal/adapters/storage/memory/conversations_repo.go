package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"petsy-backend/internal/domain/conversations"
)

type conversationRepo struct {
	mu       sync.RWMutex
	byID     map[string]conversations.Conversation
	messages map[string][]conversations.Message // por conversación, en orden de inserción
}

func NewConversationRepo() conversations.Repository {
	return &conversationRepo{
		byID:     make(map[string]conversations.Conversation),
		messages: make(map[string][]conversations.Message),
	}
}

func (r *conversationRepo) CreateConversation(ctx context.Context, c conversations.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		return errors.New("conversation id required")
	}
	if _, exists := r.byID[c.ID]; exists {
		return errors.New("conversation already exists")
	}
	r.byID[c.ID] = c
	return nil
}

func (r *conversationRepo) UpdateConversation(ctx context.Context, c conversations.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[c.ID]; !exists {
		return ErrNotFound
	}
	r.byID[c.ID] = c
	return nil
}

func (r *conversationRepo) GetConversation(ctx context.Context, id string) (conversations.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return conversations.Conversation{}, ErrNotFound
	}
	return c, nil
}

func (r *conversationRepo) FindBetween(ctx context.Context, userA, userB string) (conversations.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.byID {
		if c.HasParticipant(userA) && c.HasParticipant(userB) {
			return c, nil
		}
	}
	return conversations.Conversation{}, ErrNotFound
}

func (r *conversationRepo) ListByUser(ctx context.Context, userID string) ([]conversations.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]conversations.Conversation, 0)
	for _, c := range r.byID {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *conversationRepo) CreateMessage(ctx context.Context, m conversations.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.ID == "" || m.ConversationID == "" {
		return errors.New("message id and conversation id required")
	}
	r.messages[m.ConversationID] = append(r.messages[m.ConversationID], m)
	return nil
}

func (r *conversationRepo) ListMessages(ctx context.Context, conversationID string, limit int) ([]conversations.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.messages[conversationID]
	start := 0
	if limit > 0 && len(msgs) > limit {
		start = len(msgs) - limit
	}

	out := make([]conversations.Message, len(msgs)-start)
	copy(out, msgs[start:])
	return out, nil
}

func (r *conversationRepo) MarkMessagesRead(ctx context.Context, conversationID, readerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	marked := 0
	msgs := r.messages[conversationID]
	for i, m := range msgs {
		if m.SenderID != readerID && !m.IsRead {
			msgs[i].IsRead = true
			marked++
		}
	}
	return marked, nil
}

func (r *conversationRepo) CountUnread(ctx context.Context, conversationID, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, m := range r.messages[conversationID] {
		if m.SenderID != userID && !m.IsRead {
			count++
		}
	}
	return count, nil
}
