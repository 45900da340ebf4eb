package appointments

import (
	"time"

	"petsy-backend/internal/domain/workflow"
)

// Status de una cita.
// @Enum pending, confirmed, completed, cancelled, no_show, rejected
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
	StatusRejected  Status = "rejected"
)

type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionReject   Action = "reject"
	ActionNoShow   Action = "no_show"
)

// transitions: pending -> confirmed -> completed, con salidas
// cancelled/no_show/rejected desde cualquiera de los dos estados vivos.
var transitions = workflow.Table[Status]{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusNoShow, StatusRejected},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow, StatusRejected},
}

func targetOf(a Action) (Status, bool) {
	switch a {
	case ActionConfirm:
		return StatusConfirmed, true
	case ActionComplete:
		return StatusCompleted, true
	case ActionCancel:
		return StatusCancelled, true
	case ActionReject:
		return StatusRejected, true
	case ActionNoShow:
		return StatusNoShow, true
	default:
		return "", false
	}
}

// Appointment es una cita agendada por el dueño con un provider concreto.
// A diferencia del care request, el provider queda fijado al crearla.
type Appointment struct {
	ID         string
	UserID     string // requester
	PetID      string
	ProviderID string

	ServiceType string
	ScheduledAt time.Time
	Notes       string

	// StatusReason acompaña las salidas (cancelled/no_show/rejected) y es
	// visible para el requester.
	StatusReason string

	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
}
