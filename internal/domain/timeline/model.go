package timeline

import (
	"time"

	"petsy-backend/internal/domain/workflow"
)

// InstanceType identifica la máquina de estados dueña del evento.
type InstanceType string

const (
	InstanceCareRequest InstanceType = "care_request"
	InstanceAppointment InstanceType = "appointment"
	InstanceOrder       InstanceType = "order"
)

// Event es el registro inmutable de una transición.
// La secuencia ordenada por CreatedAt reconstruye el status actual de la instancia.
type Event struct {
	ID string

	InstanceType InstanceType
	InstanceID   string

	ActorID   string
	ActorRole workflow.Role

	Action string
	Status string
	Notes  string

	CreatedAt time.Time
}
