package carerequests

import (
	"time"

	"petsy-backend/internal/domain/workflow"
)

// Status de un care request.
// @Enum pending, accepted, in_progress, completed, cancelled
type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Action son los verbos de transición expuestos por la API.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// transitions: pending -> accepted -> in_progress -> completed,
// con cancelación desde pending o accepted. completed y cancelled son terminales.
var transitions = workflow.Table[Status]{
	StatusPending:    {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

func targetOf(a Action) (Status, bool) {
	switch a {
	case ActionAccept:
		return StatusAccepted, true
	case ActionStart:
		return StatusInProgress, true
	case ActionComplete:
		return StatusCompleted, true
	case ActionCancel:
		return StatusCancelled, true
	default:
		return "", false
	}
}

// CareRequest es la solicitud de atención de un dueño para su mascota.
// La crea el requester; muta solo vía transiciones guardadas; nunca se
// borra (lifecycle soft).
type CareRequest struct {
	ID     string
	UserID string // requester
	PetID  string

	// ProviderID queda asignado al aceptar; la reasignación preserva historia.
	ProviderID string

	Title       string
	Description string
	Priority    string // low, medium, high

	Diagnosis    string
	Prescription string
	Notes        string

	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
}
