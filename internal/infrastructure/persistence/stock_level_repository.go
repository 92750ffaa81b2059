package persistence

import (
	"context"
	"time"

	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/erp/reservation/internal/domain/shared"
	"github.com/erp/reservation/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockLevelRepository implements StockLevelRepository using GORM
type GormStockLevelRepository struct {
	db *gorm.DB
}

// NewGormStockLevelRepository creates a new GormStockLevelRepository
func NewGormStockLevelRepository(db *gorm.DB) *GormStockLevelRepository {
	return &GormStockLevelRepository{db: db}
}

// FindByKey finds the stock level for a product/warehouse pair
func (r *GormStockLevelRepository) FindByKey(ctx context.Context, key reservation.StockKey) (*reservation.StockLevel, error) {
	return r.findByKey(r.db.WithContext(ctx), key)
}

// FindByKeyForUpdate finds the stock level and holds its row lock until the transaction ends
func (r *GormStockLevelRepository) FindByKeyForUpdate(ctx context.Context, key reservation.StockKey) (*reservation.StockLevel, error) {
	return r.findByKey(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), key)
}

func (r *GormStockLevelRepository) findByKey(query *gorm.DB, key reservation.StockKey) (*reservation.StockLevel, error) {
	start := time.Now()
	var model models.StockLevelModel
	err := query.Where("product_id = ? AND warehouse_id = ?", key.ProductID, key.WarehouseID).First(&model).Error
	if err != nil {
		if isRecordNotFound(err) {
			return nil, shared.ErrNotFound
		}
		return nil, translateError("find stock level", key.String(), time.Since(start), err)
	}
	return model.ToDomain(), nil
}

// Create inserts a new stock level
func (r *GormStockLevelRepository) Create(ctx context.Context, s *reservation.StockLevel) error {
	if err := r.db.WithContext(ctx).Create(models.StockLevelModelFromDomain(s)).Error; err != nil {
		return translateError("create stock level", s.StockKey.String(), 0, err)
	}
	return nil
}

// SaveWithLock saves with optimistic locking. The row must still carry s.Version; on success
// both the row and s move to the next version.
func (r *GormStockLevelRepository) SaveWithLock(ctx context.Context, s *reservation.StockLevel) error {
	result := r.db.WithContext(ctx).
		Model(&models.StockLevelModel{}).
		Where("id = ? AND version = ?", s.ID, s.Version).
		Updates(map[string]any{
			"physical_quantity": s.PhysicalQuantity,
			"version":           s.Version + 1,
			"updated_at":        s.UpdatedAt,
		})
	if result.Error != nil {
		return translateError("save stock level", s.StockKey.String(), 0, result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.WrapDomainError(shared.CodeConcurrencyConflict,
			"Stock level was modified by another transaction", shared.ErrConcurrencyConflict)
	}
	s.IncrementVersion()
	return nil
}

var _ reservation.StockLevelRepository = (*GormStockLevelRepository)(nil)
