package persistence

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/erp/reservation/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormStockLevelRepository_CreateAndSave(t *testing.T) {
	db := newSQLiteDatabase(t)
	repo := NewGormStockLevelRepository(db.DB)
	ctx := context.Background()
	key := newKey()

	_, err := repo.FindByKey(ctx, key)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	level, err := reservation.NewStockLevel(key, baseTime)
	require.NoError(t, err)
	require.NoError(t, level.Receive(decimal.NewFromInt(10), baseTime))
	require.NoError(t, repo.Create(ctx, level))

	loaded, err := repo.FindByKeyForUpdate(ctx, key)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(loaded.PhysicalQuantity))
	assert.Equal(t, 1, loaded.Version)

	require.NoError(t, loaded.Deduct(decimal.NewFromInt(4), baseTime))
	require.NoError(t, repo.SaveWithLock(ctx, loaded))
	assert.Equal(t, 2, loaded.Version)

	reloaded, err := repo.FindByKey(ctx, key)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(6).Equal(reloaded.PhysicalQuantity))
	assert.Equal(t, 2, reloaded.Version)
}

func TestGormStockLevelRepository_SaveWithLock_StaleVersion(t *testing.T) {
	db := newSQLiteDatabase(t)
	repo := NewGormStockLevelRepository(db.DB)
	ctx := context.Background()
	key := newKey()

	level, err := reservation.NewStockLevel(key, baseTime)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, level))

	a, err := repo.FindByKey(ctx, key)
	require.NoError(t, err)
	b, err := repo.FindByKey(ctx, key)
	require.NoError(t, err)

	require.NoError(t, a.Receive(decimal.NewFromInt(1), baseTime))
	require.NoError(t, repo.SaveWithLock(ctx, a))

	require.NoError(t, b.Receive(decimal.NewFromInt(2), baseTime))
	err = repo.SaveWithLock(ctx, b)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
}

func TestGormStockLevelRepository_Create_DuplicateKey(t *testing.T) {
	db := newSQLiteDatabase(t)
	repo := NewGormStockLevelRepository(db.DB)
	ctx := context.Background()
	key := newKey()

	first, _ := reservation.NewStockLevel(key, baseTime)
	second, _ := reservation.NewStockLevel(key, baseTime)
	require.NoError(t, repo.Create(ctx, first))

	err := repo.Create(ctx, second)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
}

func TestGormStockLevelRepository_LockTimeout(t *testing.T) {
	gormDB, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewGormStockLevelRepository(gormDB)
	key := newKey()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "stock_levels" WHERE product_id = $1 AND warehouse_id = $2`) + `.*FOR UPDATE`).
		WithArgs(key.ProductID, key.WarehouseID, 1).
		WillReturnError(&pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"})

	_, err := repo.FindByKeyForUpdate(context.Background(), key)

	var lockErr *reservation.LockTimeoutError
	require.ErrorAs(t, err, &lockErr)
	assert.Equal(t, key.String(), lockErr.Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStockLevelRepository_SaveWithLock_SQL(t *testing.T) {
	gormDB, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewGormStockLevelRepository(gormDB)

	level, err := reservation.NewStockLevel(newKey(), baseTime)
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE "stock_levels" SET .* WHERE id = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.SaveWithLock(context.Background(), level)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.Equal(t, 1, level.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
