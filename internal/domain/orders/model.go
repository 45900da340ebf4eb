package orders

import (
	"time"

	"petsy-backend/internal/domain/workflow"
)

// Status de una orden.
// @Enum pending, confirmed, shipped, delivered, cancelled
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// transitions cubre ambos lados: el fulfillment del seller
// (confirmed -> shipped -> delivered, con cancelación hasta shipped) y la
// confirmación/cancelación temprana del buyer.
var transitions = workflow.Table[Status]{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered, StatusCancelled},
}

// sellerStatuses son los targets que el seller puede pedir por la ruta de ventas.
var sellerStatuses = map[Status]bool{
	StatusShipped:   true,
	StatusDelivered: true,
	StatusCancelled: true,
}

// Item es una línea de la orden. El checkout agrupa por seller, así que
// todas las líneas de una orden comparten SellerUserID.
type Item struct {
	ProductID    string
	Name         string
	Price        float64
	Quantity     int
	SellerUserID string
}

// Order es una compra de un buyer contra un único seller.
type Order struct {
	ID           string
	BuyerUserID  string
	SellerUserID string

	Items []Item
	Total float64

	Status       Status
	StatusReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}
