package reservation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	allowed := map[Status]map[Status]bool{
		StatusActive: {StatusConfirmed: true, StatusCancelled: true, StatusExpired: true},
	}

	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			want := allowed[from][to]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusActive.IsTerminal())
	assert.True(t, StatusConfirmed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusExpired.IsTerminal())
}

func TestParseStatus(t *testing.T) {
	t.Run("parses case-insensitively", func(t *testing.T) {
		s, err := ParseStatus(" expired ")
		require.NoError(t, err)
		assert.Equal(t, StatusExpired, s)
	})

	t.Run("rejects unknown", func(t *testing.T) {
		_, err := ParseStatus("PENDING")
		assert.Error(t, err)
	})
}
