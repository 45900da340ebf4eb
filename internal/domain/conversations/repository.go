package conversations

import "context"

type Repository interface {
	CreateConversation(ctx context.Context, c Conversation) error
	UpdateConversation(ctx context.Context, c Conversation) error
	GetConversation(ctx context.Context, id string) (Conversation, error)

	// FindBetween busca el hilo existente entre dos usuarios (en cualquier orden).
	FindBetween(ctx context.Context, userA, userB string) (Conversation, error)
	ListByUser(ctx context.Context, userID string) ([]Conversation, error)

	CreateMessage(ctx context.Context, m Message) error

	// ListMessages devuelve los mensajes en orden de creación ascendente.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)

	// MarkMessagesRead marca como leídos los mensajes dirigidos a readerID.
	MarkMessagesRead(ctx context.Context, conversationID, readerID string) (int, error)
	CountUnread(ctx context.Context, conversationID, userID string) (int, error)
}
