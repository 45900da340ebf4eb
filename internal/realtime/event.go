package realtime

import "time"

// Event es el envelope JSON que viaja por el canal en vivo.
// Contrato server -> client: connected, presence_update, typing,
// messages_read, new_message, conversations_updated, y los tipos de
// notificación durable (care_request, appointment, order, message, ...).
type Event struct {
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewEvent(typ string, payload map[string]any) Event {
	return Event{
		Type:      typ,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}
