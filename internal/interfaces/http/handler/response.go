package handler

import (
	"time"

	appreservation "github.com/erp/reservation/internal/application/reservation"
	"github.com/erp/reservation/internal/interfaces/http/dto"
)

// APIResponse represents a generic API response for OpenAPI documentation
// @Description Standard API response wrapper with typed data field
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// ErrorResponse represents an error API response for OpenAPI documentation
// @Description Standard error response
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

// ReservationListResponse is a page of reservations for OpenAPI documentation
type ReservationListResponse struct {
	Success bool                                 `json:"success" example:"true"`
	Data    []appreservation.ReservationResponse `json:"data"`
	Meta    *dto.Meta                            `json:"meta"`
}

// SweepRunResponse reports the most recent sweep
// @Description Outcome of the latest expiration sweep
type SweepRunResponse struct {
	Stats *appreservation.SweepStats `json:"stats,omitempty"`
	Error string                     `json:"error,omitempty"`
}

// HealthResponse reports liveness or readiness
type HealthResponse struct {
	Status    string            `json:"status" example:"ok"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
