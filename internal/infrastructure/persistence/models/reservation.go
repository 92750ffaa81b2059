package models

import (
	"time"

	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReservationModel is the persistence model for the Reservation aggregate root.
type ReservationModel struct {
	AggregateModel
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_reservations_key_status,priority:1"`
	WarehouseID uuid.UUID       `gorm:"type:uuid;not null;index:idx_reservations_key_status,priority:2"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Status      string          `gorm:"type:varchar(20);not null;index:idx_reservations_key_status,priority:3;index:idx_reservations_status_expires,priority:1"`
	OwnerType   string          `gorm:"type:varchar(50);not null;index:idx_reservations_owner,priority:1"`
	OwnerID     string          `gorm:"type:varchar(100);not null;index:idx_reservations_owner,priority:2"`
	ExpiresAt   time.Time       `gorm:"not null;index:idx_reservations_status_expires,priority:2"`
	ResolvedAt  *time.Time      `gorm:"index"`
}

// TableName returns the table name for GORM
func (ReservationModel) TableName() string {
	return "reservations"
}

// ToDomain converts the persistence model to a domain Reservation.
func (m *ReservationModel) ToDomain() *reservation.Reservation {
	return &reservation.Reservation{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ProductID:         m.ProductID,
		WarehouseID:       m.WarehouseID,
		Quantity:          m.Quantity.Round(reservation.QuantityScale),
		Status:            reservation.Status(m.Status),
		Owner:             reservation.OwnerRef{Type: m.OwnerType, ID: m.OwnerID},
		ExpiresAt:         m.ExpiresAt,
		ResolvedAt:        m.ResolvedAt,
	}
}

// FromDomain populates the persistence model from a domain Reservation.
func (m *ReservationModel) FromDomain(r *reservation.Reservation) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.ProductID = r.ProductID
	m.WarehouseID = r.WarehouseID
	m.Quantity = r.Quantity
	m.Status = string(r.Status)
	m.OwnerType = r.Owner.Type
	m.OwnerID = r.Owner.ID
	m.ExpiresAt = r.ExpiresAt
	m.ResolvedAt = r.ResolvedAt
}

// ReservationModelFromDomain creates a new persistence model from a domain Reservation.
func ReservationModelFromDomain(r *reservation.Reservation) *ReservationModel {
	m := &ReservationModel{}
	m.FromDomain(r)
	return m
}

// StockLevelModel is the persistence model for the StockLevel aggregate root.
type StockLevelModel struct {
	AggregateModel
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_levels_key,priority:1"`
	WarehouseID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_levels_key,priority:2"`
	PhysicalQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (StockLevelModel) TableName() string {
	return "stock_levels"
}

// ToDomain converts the persistence model to a domain StockLevel.
func (m *StockLevelModel) ToDomain() *reservation.StockLevel {
	return &reservation.StockLevel{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		StockKey:          reservation.NewStockKey(m.ProductID, m.WarehouseID),
		PhysicalQuantity:  m.PhysicalQuantity.Round(reservation.QuantityScale),
	}
}

// FromDomain populates the persistence model from a domain StockLevel.
func (m *StockLevelModel) FromDomain(s *reservation.StockLevel) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.ProductID = s.ProductID
	m.WarehouseID = s.WarehouseID
	m.PhysicalQuantity = s.PhysicalQuantity
}

// StockLevelModelFromDomain creates a new persistence model from a domain StockLevel.
func StockLevelModelFromDomain(s *reservation.StockLevel) *StockLevelModel {
	m := &StockLevelModel{}
	m.FromDomain(s)
	return m
}

// AllModels lists every model for AutoMigrate in tests and sqlite deployments
func AllModels() []any {
	return []any{&StockLevelModel{}, &ReservationModel{}}
}
