package dto

import (
	"math"
	"time"

	appreservation "github.com/erp/reservation/internal/application/reservation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockPathParams are the path parameters addressing one stock key
type StockPathParams struct {
	ProductID   string `uri:"product_id" binding:"required,uuid"`
	WarehouseID string `uri:"warehouse_id" binding:"required,uuid"`
}

// OwnerRequest identifies the document a reservation is held for
type OwnerRequest struct {
	Type string `json:"type" binding:"required,owner_type,max=50" example:"sales_order"`
	ID   string `json:"id" binding:"required,max=100" example:"SO-2026-0001"`
}

// CreateReservationRequest is the body of POST /reservations
type CreateReservationRequest struct {
	ProductID   string          `json:"product_id" binding:"required,uuid"`
	WarehouseID string          `json:"warehouse_id" binding:"required,uuid"`
	Quantity    decimal.Decimal `json:"quantity" swaggertype:"string" example:"5"`
	// TTLSeconds defaults to the configured reservation lifetime when omitted. At most one year.
	TTLSeconds *int64       `json:"ttl_seconds,omitempty" binding:"omitempty,gt=0,max=31536000" example:"900"`
	Owner      OwnerRequest `json:"owner" binding:"required"`
}

// TTL returns the requested lifetime, or fallback when none was given
func (r CreateReservationRequest) TTL(fallback time.Duration) time.Duration {
	if r.TTLSeconds == nil {
		return fallback
	}
	seconds := *r.TTLSeconds
	if seconds > maxTTLSeconds {
		// saturate so the lifetime cap rejects it instead of a wrapped value slipping through
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(seconds) * time.Second
}

const maxTTLSeconds = int64(math.MaxInt64 / int64(time.Second))

// ListReservationsRequest holds the query parameters of GET /reservations
type ListReservationsRequest struct {
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy     string `form:"order_by" binding:"omitempty,oneof=created_at updated_at expires_at resolved_at quantity status"`
	OrderDir    string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	ProductID   string `form:"product_id" binding:"omitempty,uuid"`
	WarehouseID string `form:"warehouse_id" binding:"omitempty,uuid"`
	Status      string `form:"status" binding:"omitempty,oneof=ACTIVE CONFIRMED CANCELLED EXPIRED"`
	OwnerType   string `form:"owner_type" binding:"omitempty,max=50"`
	OwnerID     string `form:"owner_id" binding:"omitempty,max=100"`
}

// ReceiveStockRequest is the body of POST /stock/:product_id/:warehouse_id/receive
type ReceiveStockRequest struct {
	Quantity decimal.Decimal `json:"quantity" swaggertype:"string" example:"10"`
}

// AdjustStockRequest is the body of PUT /stock/:product_id/:warehouse_id
type AdjustStockRequest struct {
	Quantity decimal.Decimal `json:"quantity" swaggertype:"string" example:"42"`
	Reason   string          `json:"reason" binding:"required,max=200" example:"cycle count"`
}

// CreateArchiveRequest is the body of POST /admin/archives. The window is [from, to).
type CreateArchiveRequest struct {
	From time.Time `json:"from" binding:"required"`
	To   time.Time `json:"to" binding:"required,gtfield=From"`
}

// AvailabilityResponse is the read model of one stock key
type AvailabilityResponse struct {
	ProductID   uuid.UUID       `json:"product_id"`
	WarehouseID uuid.UUID       `json:"warehouse_id"`
	Physical    decimal.Decimal `json:"physical" swaggertype:"string"`
	Reserved    decimal.Decimal `json:"reserved" swaggertype:"string"`
	Available   decimal.Decimal `json:"available" swaggertype:"string"`
}

// ToAvailabilityResponse converts an availability snapshot
func ToAvailabilityResponse(a *appreservation.Availability) AvailabilityResponse {
	return AvailabilityResponse{
		ProductID:   a.Key.ProductID,
		WarehouseID: a.Key.WarehouseID,
		Physical:    a.Physical,
		Reserved:    a.Reserved,
		Available:   a.Available,
	}
}
