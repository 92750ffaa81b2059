package migration

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/erp/reservation/internal/infrastructure/config"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open(SQLDriverName(config.DriverSQLite), filepath.Join(t.TempDir(), "rsv.db"))
	require.NoError(t, err)
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count))
	return count == 1
}

func TestMigrator_SQLiteUpDown(t *testing.T) {
	db := openSQLite(t)
	m, err := New(db, config.DriverSQLite, zap.NewNop())
	require.NoError(t, err)
	defer m.Close()

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, m.Up())
	assert.True(t, tableExists(t, db, "stock_levels"))
	assert.True(t, tableExists(t, db, "reservations"))

	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	// Up is idempotent
	require.NoError(t, m.Up())

	require.NoError(t, m.Steps(-1))
	assert.False(t, tableExists(t, db, "reservations"))
	assert.True(t, tableExists(t, db, "stock_levels"))

	require.NoError(t, m.Down())
	assert.False(t, tableExists(t, db, "stock_levels"))
}

func TestNew_UnsupportedDriver(t *testing.T) {
	db := openSQLite(t)
	defer db.Close()

	_, err := New(db, "oracle", zap.NewNop())
	assert.Error(t, err)
}

func TestSQLDriverName(t *testing.T) {
	assert.Equal(t, "postgres", SQLDriverName(config.DriverPostgres))
	assert.Equal(t, "mysql", SQLDriverName(config.DriverMySQL))
	assert.Equal(t, "sqlite3", SQLDriverName(config.DriverSQLite))
}
