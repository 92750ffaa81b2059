// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free of ORM concerns.
//
// Structure:
//   - base.go: BaseModel and AggregateModel (id, timestamps, version)
//   - reservation.go: ReservationModel and StockLevelModel with domain mappers
package models
