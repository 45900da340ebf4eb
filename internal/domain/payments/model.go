package payments

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Payment es un pago simulado. No hay gateway real: cash_on_delivery
// queda succeeded al crearse, el resto espera la confirmación manual.
type Payment struct {
	ID     string
	UserID string

	AppointmentID string
	OrderID       string

	Amount float64
	Method string // cash_on_delivery, card

	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
}
