package conversations

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"petsy-backend/internal/domain/notifications"
	"petsy-backend/internal/realtime"
)

// -------------------------
// Test fakes
// -------------------------

type testRepo struct {
	conversations map[string]Conversation
	messages      map[string][]Message
}

func newTestRepo() *testRepo {
	return &testRepo{
		conversations: map[string]Conversation{},
		messages:      map[string][]Message{},
	}
}

func (r *testRepo) CreateConversation(ctx context.Context, c Conversation) error {
	r.conversations[c.ID] = c
	return nil
}

func (r *testRepo) UpdateConversation(ctx context.Context, c Conversation) error {
	if _, ok := r.conversations[c.ID]; !ok {
		return errors.New("not found")
	}
	r.conversations[c.ID] = c
	return nil
}

func (r *testRepo) GetConversation(ctx context.Context, id string) (Conversation, error) {
	c, ok := r.conversations[id]
	if !ok {
		return Conversation{}, errors.New("not found")
	}
	return c, nil
}

func (r *testRepo) FindBetween(ctx context.Context, userA, userB string) (Conversation, error) {
	for _, c := range r.conversations {
		if c.HasParticipant(userA) && c.HasParticipant(userB) {
			return c, nil
		}
	}
	return Conversation{}, errors.New("not found")
}

func (r *testRepo) ListByUser(ctx context.Context, userID string) ([]Conversation, error) {
	out := make([]Conversation, 0)
	for _, c := range r.conversations {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *testRepo) CreateMessage(ctx context.Context, m Message) error {
	r.messages[m.ConversationID] = append(r.messages[m.ConversationID], m)
	return nil
}

func (r *testRepo) ListMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	msgs := r.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (r *testRepo) MarkMessagesRead(ctx context.Context, conversationID, readerID string) (int, error) {
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

func (r *testRepo) CountUnread(ctx context.Context, conversationID, userID string) (int, error) {
	count := 0
	for _, m := range r.messages[conversationID] {
		if m.SenderID != userID && !m.IsRead {
			count++
		}
	}
	return count, nil
}

type testNotifRepo struct {
	items []notifications.Notification
}

func (r *testNotifRepo) Create(ctx context.Context, n notifications.Notification) error {
	r.items = append(r.items, n)
	return nil
}

func (r *testNotifRepo) GetByID(ctx context.Context, id string) (notifications.Notification, error) {
	return notifications.Notification{}, errors.New("not found")
}

func (r *testNotifRepo) ListByUser(ctx context.Context, userID string, limit int) ([]notifications.Notification, error) {
	return nil, nil
}

func (r *testNotifRepo) MarkRead(ctx context.Context, id string) error        { return nil }
func (r *testNotifRepo) MarkAllRead(ctx context.Context, userID string) error { return nil }

type testPusher struct {
	pushes []pushedEvent
}

type pushedEvent struct {
	UserID string
	Event  realtime.Event
}

func (p *testPusher) SendToUser(userID string, ev realtime.Event) {
	p.pushes = append(p.pushes, pushedEvent{UserID: userID, Event: ev})
}

func (p *testPusher) received(userID, eventType string) []realtime.Event {
	out := make([]realtime.Event, 0)
	for _, push := range p.pushes {
		if push.UserID == userID && push.Event.Type == eventType {
			out = append(out, push.Event)
		}
	}
	return out
}

type emptyRoles struct{}

func (emptyRoles) IDsByRole(ctx context.Context, role string) ([]string, error) { return nil, nil }

// -------------------------
// Env
// -------------------------

type testEnv struct {
	svc       *Service
	repo      *testRepo
	notifRepo *testNotifRepo
	pusher    *testPusher
}

func newTestEnv() *testEnv {
	repo := newTestRepo()
	notifRepo := &testNotifRepo{}
	pusher := &testPusher{}

	notifSvc := notifications.NewService(notifRepo, pusher, emptyRoles{}, nil, zerolog.Nop())

	return &testEnv{
		svc:       NewService(repo, notifSvc, pusher),
		repo:      repo,
		notifRepo: notifRepo,
		pusher:    pusher,
	}
}

// -------------------------
// Tests
// -------------------------

func TestStart_ReusesExistingThread(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	c1, err := env.svc.Start(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Mismo par en cualquier orden: mismo hilo.
	c2, err := env.svc.Start(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("start again: %v", err)
	}
	if c1.ID != c2.ID {
		t.Fatalf("expected same conversation, got %s vs %s", c1.ID, c2.ID)
	}

	if _, err := env.svc.Start(ctx, "alice", "alice"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for self conversation, got %v", err)
	}
}

func TestSend_NotifiesPeerDurablyAndLive(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	c, _ := env.svc.Start(ctx, "alice", "bob")

	m, err := env.svc.Send(ctx, c.ID, "alice", "hola")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	// Record durable tipo message para el peer.
	if len(env.notifRepo.items) != 1 {
		t.Fatalf("expected 1 durable notification, got %d", len(env.notifRepo.items))
	}
	n := env.notifRepo.items[0]
	if n.UserID != "bob" || n.Type != "message" {
		t.Fatalf("expected durable message notification for bob, got %s/%s", n.UserID, n.Type)
	}

	// Push en vivo con tipo new_message y deep-link al mensaje.
	pushes := env.pusher.received("bob", "new_message")
	if len(pushes) != 1 {
		t.Fatalf("expected 1 new_message push for bob, got %d", len(pushes))
	}
	if pushes[0].Payload["message_id"] != m.ID {
		t.Fatalf("expected message_id in push payload, got %v", pushes[0].Payload)
	}

	// Y el refresh de la lista de hilos.
	if len(env.pusher.received("bob", "conversations_updated")) != 1 {
		t.Fatalf("expected conversations_updated push for bob")
	}

	// El emisor no recibe nada.
	if len(env.pusher.received("alice", "new_message")) != 0 {
		t.Fatalf("unexpected self push for sender")
	}

	got, _ := env.repo.GetConversation(ctx, c.ID)
	if got.LastMessage != "hola" || got.LastMessageAt == nil {
		t.Fatalf("expected thread preview updated, got %q", got.LastMessage)
	}
}

func TestMessages_MarksReadAndEmitsReceipt(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	c, _ := env.svc.Start(ctx, "alice", "bob")
	for _, text := range []string{"uno", "dos"} {
		if _, err := env.svc.Send(ctx, c.ID, "alice", text); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	unread, _ := env.repo.CountUnread(ctx, c.ID, "bob")
	if unread != 2 {
		t.Fatalf("expected 2 unread for bob, got %d", unread)
	}

	msgs, err := env.svc.Messages(ctx, c.ID, "bob", 50)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}

	if unread, _ = env.repo.CountUnread(ctx, c.ID, "bob"); unread != 0 {
		t.Fatalf("expected 0 unread after listing, got %d", unread)
	}

	// El emisor recibe el read receipt una sola vez.
	receipts := env.pusher.received("alice", "messages_read")
	if len(receipts) != 1 {
		t.Fatalf("expected 1 messages_read receipt, got %d", len(receipts))
	}
	if receipts[0].Payload["conversation_id"] != c.ID {
		t.Fatalf("expected conversation_id in receipt, got %v", receipts[0].Payload)
	}

	// Segunda lectura sin mensajes nuevos: sin receipt extra.
	if _, err := env.svc.Messages(ctx, c.ID, "bob", 50); err != nil {
		t.Fatalf("messages again: %v", err)
	}
	if got := len(env.pusher.received("alice", "messages_read")); got != 1 {
		t.Fatalf("expected no extra receipt, got %d", got)
	}
}

func TestMembership_NonMemberSeesNothing(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	c, _ := env.svc.Start(ctx, "alice", "bob")

	if _, err := env.svc.Send(ctx, c.ID, "carol", "hi"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-member send, got %v", err)
	}
	if _, err := env.svc.Messages(ctx, c.ID, "carol", 50); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-member list, got %v", err)
	}

	// Igual que un hilo inexistente.
	if _, err := env.svc.Messages(ctx, "no-such-thread", "carol", 50); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing thread, got %v", err)
	}
}

func TestListMine_CarriesUnreadCounts(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	c, _ := env.svc.Start(ctx, "alice", "bob")
	_, _ = env.svc.Send(ctx, c.ID, "alice", "ping")

	summaries, err := env.svc.ListMine(ctx, "bob")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(summaries))
	}
	if summaries[0].UnreadCount != 1 {
		t.Fatalf("expected 1 unread, got %d", summaries[0].UnreadCount)
	}
}
