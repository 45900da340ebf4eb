package conversations

import "time"

// Conversation es un hilo 1:1 entre dos usuarios.
type Conversation struct {
	ID             string
	ParticipantIDs []string // exactamente dos

	LastMessage   string
	LastMessageAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.ParticipantIDs {
		if p == userID {
			return true
		}
	}
	return false
}

// Peer devuelve el otro participante.
func (c Conversation) Peer(userID string) string {
	for _, p := range c.ParticipantIDs {
		if p != userID {
			return p
		}
	}
	return ""
}

type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	IsRead         bool
	CreatedAt      time.Time
}
