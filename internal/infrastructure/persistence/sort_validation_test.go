package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	assert.Equal(t, "ASC", ValidateSortOrder("asc"))
	assert.Equal(t, "ASC", ValidateSortOrder(" ASC "))
	assert.Equal(t, "DESC", ValidateSortOrder("desc"))
	assert.Equal(t, "DESC", ValidateSortOrder(""))
	assert.Equal(t, "DESC", ValidateSortOrder("sideways"))
}

func TestValidateSortField(t *testing.T) {
	assert.Equal(t, "expires_at", ValidateSortField("expires_at", ReservationSortFields, "created_at"))
	assert.Equal(t, "created_at", ValidateSortField("", ReservationSortFields, "created_at"))
	assert.Equal(t, "created_at", ValidateSortField("owner_secret", ReservationSortFields, "created_at"))
}

func TestSQLInjectionPrevention(t *testing.T) {
	payloads := []string{
		"id; DROP TABLE reservations;--",
		"id' OR '1'='1",
		"id UNION SELECT * FROM stock_levels",
		"CASE WHEN 1=1 THEN id ELSE status END",
		"id\n; DROP TABLE reservations",
	}

	for _, payload := range payloads {
		t.Run(payload, func(t *testing.T) {
			assert.Equal(t, "created_at", ValidateSortField(payload, ReservationSortFields, "created_at"))
			assert.Equal(t, "DESC", ValidateSortOrder(payload))
		})
	}
}
