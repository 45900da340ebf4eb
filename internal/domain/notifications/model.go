package notifications

import "time"

// Notification pertenece a exactamente un destinatario. La crea el servicio;
// solo el destinatario puede marcarla como leída. Data siempre incluye los
// identificadores para deep-link a la instancia de workflow de origen.
type Notification struct {
	ID     string
	UserID string

	Type  string // care_request, appointment, order, message, ...
	Title string
	Body  string
	Data  map[string]any

	IsRead bool

	CreatedAt time.Time
	ReadAt    *time.Time
}
