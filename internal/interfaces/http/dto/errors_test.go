package dto

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/erp/reservation/internal/domain/shared"
	"github.com/erp/reservation/internal/infrastructure/scheduler"
	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeInvalidJSON, http.StatusBadRequest},
		{reservation.CodeInvalidQuantity, http.StatusBadRequest},
		{reservation.CodeInvalidTTL, http.StatusBadRequest},
		{reservation.CodeInvalidOwner, http.StatusBadRequest},
		{shared.CodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{shared.CodeNotFound, http.StatusNotFound},
		{shared.CodeIdempotencyInProgress, http.StatusConflict},
		{scheduler.CodeSweepInProgress, http.StatusConflict},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{shared.CodeInsufficientStock, http.StatusUnprocessableEntity},
		{shared.CodeInvalidState, http.StatusUnprocessableEntity},
		{shared.CodeStorage, http.StatusInternalServerError},
		{shared.CodeLockTimeout, http.StatusServiceUnavailable},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestFromError(t *testing.T) {
	t.Run("domain error keeps its message", func(t *testing.T) {
		apiErr := FromError(shared.NewDomainError(shared.CodeInsufficientStock, "only 3 available"))
		assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
		assert.Equal(t, shared.CodeInsufficientStock, apiErr.Code)
		assert.Equal(t, "only 3 available", apiErr.Message)
		assert.Zero(t, apiErr.RetryAfter)
	})

	t.Run("wrapped domain error is unwrapped", func(t *testing.T) {
		err := fmt.Errorf("confirm: %w", shared.ErrNotFound)
		apiErr := FromError(err)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
		assert.Equal(t, shared.CodeNotFound, apiErr.Code)
	})

	t.Run("lock timeout carries retry hint", func(t *testing.T) {
		apiErr := FromError(shared.NewDomainError(shared.CodeLockTimeout, "key busy"))
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
		assert.Equal(t, LockTimeoutRetryAfter, apiErr.RetryAfter)
	})

	t.Run("storage error hides the cause", func(t *testing.T) {
		err := shared.WrapDomainError(shared.CodeStorage, "save reservation", errors.New("pq: connection refused"))
		apiErr := FromError(err)
		assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
		assert.Equal(t, shared.CodeStorage, apiErr.Code)
		assert.NotContains(t, apiErr.Message, "pq")
	})

	t.Run("plain error is internal", func(t *testing.T) {
		apiErr := FromError(errors.New("boom"))
		assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
		assert.Equal(t, ErrCodeInternal, apiErr.Code)
		assert.NotContains(t, apiErr.Message, "boom")
	})
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("Invalid request", "req-1", []ValidationDetail{
		{Field: "quantity", Message: "must be positive"},
	})

	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Len(t, resp.Error.Details, 1)
}
