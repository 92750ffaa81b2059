package reservation

import (
	"time"

	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReserveCommand is the input to Reserve
type ReserveCommand struct {
	Key      reservation.StockKey
	Quantity decimal.Decimal
	TTL      time.Duration
	Owner    reservation.OwnerRef
	// IdempotencyKey makes repeated submissions return the first result
	IdempotencyKey string
}

// ReservationResponse is the read model of a reservation
type ReservationResponse struct {
	ID          uuid.UUID            `json:"id"`
	ProductID   uuid.UUID            `json:"product_id"`
	WarehouseID uuid.UUID            `json:"warehouse_id"`
	Quantity    decimal.Decimal      `json:"quantity"`
	Status      reservation.Status   `json:"status"`
	Owner       reservation.OwnerRef `json:"owner"`
	CreatedAt   time.Time            `json:"created_at"`
	ExpiresAt   time.Time            `json:"expires_at"`
	ResolvedAt  *time.Time           `json:"resolved_at,omitempty"`
	Version     int                  `json:"version"`
}

// ToReservationResponse converts a domain reservation to its read model
func ToReservationResponse(r *reservation.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:          r.ID,
		ProductID:   r.ProductID,
		WarehouseID: r.WarehouseID,
		Quantity:    r.Quantity,
		Status:      r.Status,
		Owner:       r.Owner,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
		ResolvedAt:  r.ResolvedAt,
		Version:     r.Version,
	}
}

// ToReservationResponses converts a slice of domain reservations
func ToReservationResponses(items []reservation.Reservation) []ReservationResponse {
	out := make([]ReservationResponse, len(items))
	for i := range items {
		out[i] = ToReservationResponse(&items[i])
	}
	return out
}
