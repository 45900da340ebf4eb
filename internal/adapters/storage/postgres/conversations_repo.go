package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"petsy-backend/internal/domain/conversations"
)

type ConversationsRepo struct {
	db *sql.DB
}

func NewConversationsRepo(db *sql.DB) *ConversationsRepo {
	return &ConversationsRepo{db: db}
}

func (r *ConversationsRepo) CreateConversation(ctx context.Context, c conversations.Conversation) error {
	a, b, err := pair(c)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO conversations (
			id, participant_a, participant_b,
			last_message, last_message_at,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		c.ID,
		a,
		b,
		c.LastMessage,
		c.LastMessageAt,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func (r *ConversationsRepo) UpdateConversation(ctx context.Context, c conversations.Conversation) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		SET last_message = $2, last_message_at = $3, updated_at = $4
		WHERE id = $1
	`, c.ID, c.LastMessage, c.LastMessageAt, c.UpdatedAt)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ConversationsRepo) GetConversation(ctx context.Context, id string) (conversations.Conversation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return conversations.Conversation{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, selectConversation+` WHERE id = $1`, id)
	return scanConversation(row.Scan)
}

func (r *ConversationsRepo) FindBetween(ctx context.Context, userA, userB string) (conversations.Conversation, error) {
	row := r.db.QueryRowContext(ctx, selectConversation+`
		WHERE (participant_a = $1 AND participant_b = $2)
		   OR (participant_a = $2 AND participant_b = $1)
	`, userA, userB)
	return scanConversation(row.Scan)
}

func (r *ConversationsRepo) ListByUser(ctx context.Context, userID string) ([]conversations.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, selectConversation+`
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]conversations.Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ConversationsRepo) CreateMessage(ctx context.Context, m conversations.Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (
			id, conversation_id, sender_id, content, is_read, created_at
		) VALUES ($1,$2,$3,$4,$5,$6)
	`,
		m.ID,
		m.ConversationID,
		m.SenderID,
		m.Content,
		m.IsRead,
		m.CreatedAt,
	)
	return err
}

func (r *ConversationsRepo) ListMessages(ctx context.Context, conversationID string, limit int) ([]conversations.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	// Últimos N, devueltos en orden ascendente.
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, content, is_read, created_at
		FROM (
			SELECT id, conversation_id, sender_id, content, is_read, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]conversations.Message, 0)
	for rows.Next() {
		var m conversations.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *ConversationsRepo) MarkMessagesRead(ctx context.Context, conversationID, readerID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET is_read = TRUE
		WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = FALSE
	`, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *ConversationsRepo) CountUnread(ctx context.Context, conversationID, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = FALSE
	`, conversationID, userID).Scan(&count)
	return count, err
}

const selectConversation = `
	SELECT
		id, participant_a, participant_b,
		last_message, last_message_at,
		created_at, updated_at
	FROM conversations`

func pair(c conversations.Conversation) (string, string, error) {
	if len(c.ParticipantIDs) != 2 {
		return "", "", errors.New("conversation requires two participants")
	}
	return c.ParticipantIDs[0], c.ParticipantIDs[1], nil
}

func scanConversation(scan func(dest ...any) error) (conversations.Conversation, error) {
	var c conversations.Conversation
	var a, b string
	var lastAt sql.NullTime
	if err := scan(&c.ID, &a, &b, &c.LastMessage, &lastAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return conversations.Conversation{}, ErrNotFound
		}
		return conversations.Conversation{}, err
	}
	c.ParticipantIDs = []string{a, b}
	if lastAt.Valid {
		t := lastAt.Time
		c.LastMessageAt = &t
	}
	return c, nil
}
