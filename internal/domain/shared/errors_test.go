package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	t.Run("wrapped sentinel matches", func(t *testing.T) {
		err := fmt.Errorf("reserve: %w", ErrLockTimeout)
		assert.True(t, errors.Is(err, ErrLockTimeout))
		assert.False(t, errors.Is(err, ErrStorage))
	})

	t.Run("copy with same code matches", func(t *testing.T) {
		err := WrapDomainError(CodeStorage, "insert failed", errors.New("disk full"))
		assert.True(t, errors.Is(err, ErrStorage))
		assert.Equal(t, "insert failed: disk full", err.Error())
	})
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrLockTimeout))
	assert.True(t, IsRetryable(fmt.Errorf("x: %w", ErrConcurrencyConflict)))
	assert.False(t, IsRetryable(ErrInsufficientStock))
	assert.False(t, IsRetryable(nil))
}

func TestNewPaginated(t *testing.T) {
	p := NewPaginated([]int{1, 2}, 5, 1, 2)
	assert.Equal(t, 3, p.TotalPages)

	empty := NewPaginated([]int{}, 0, 1, 0)
	assert.Equal(t, 0, empty.TotalPages)
}
