package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/erp/reservation/internal/domain/shared"
	"github.com/erp/reservation/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReservationRepository implements ReservationRepository using GORM
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// FindByID finds a reservation by its ID
func (r *GormReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*reservation.Reservation, error) {
	return r.findByID(ctx, r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds a reservation and holds its row lock until the transaction ends
func (r *GormReservationRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*reservation.Reservation, error) {
	return r.findByID(ctx, r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormReservationRepository) findByID(_ context.Context, query *gorm.DB, id uuid.UUID) (*reservation.Reservation, error) {
	start := time.Now()
	var model models.ReservationModel
	if err := query.Where("id = ?", id).First(&model).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, &reservation.ReservationNotFoundError{ID: id}
		}
		return nil, translateError("find reservation", id.String(), time.Since(start), err)
	}
	return model.ToDomain(), nil
}

// FindAll returns a page of reservations matching the filter and the total match count
func (r *GormReservationRepository) FindAll(ctx context.Context, filter reservation.ReservationFilter) ([]reservation.Reservation, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ReservationModel{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, reservation.NewStorageError("count reservations", err)
	}

	orderBy := ValidateSortField(filter.OrderBy, ReservationSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("%s %s", orderBy, orderDir)).Order("id " + orderDir)
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.ReservationModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, reservation.NewStorageError("list reservations", err)
	}
	return toReservations(rows), total, nil
}

func (r *GormReservationRepository) applyFilter(query *gorm.DB, filter reservation.ReservationFilter) *gorm.DB {
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.WarehouseID != nil {
		query = query.Where("warehouse_id = ?", *filter.WarehouseID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.OwnerType != "" {
		query = query.Where("owner_type = ?", filter.OwnerType)
	}
	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	return query
}

// SumActive returns the total quantity of ACTIVE reservations for the key. The sum is taken over
// decimals in Go because SQLite stores decimal columns as REAL and SUM there is inexact.
func (r *GormReservationRepository) SumActive(ctx context.Context, key reservation.StockKey) (decimal.Decimal, error) {
	var quantities []decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.ReservationModel{}).
		Where("product_id = ? AND warehouse_id = ? AND status = ?", key.ProductID, key.WarehouseID, string(reservation.StatusActive)).
		Pluck("quantity", &quantities).Error
	if err != nil {
		return decimal.Zero, translateError("sum active reservations", key.String(), 0, err)
	}
	total := decimal.Zero
	for _, q := range quantities {
		total = total.Add(q.Round(reservation.QuantityScale))
	}
	return total, nil
}

// FindDue returns ACTIVE reservations due at now that sort after the cursor, ordered by (expires_at, id)
func (r *GormReservationRepository) FindDue(ctx context.Context, now time.Time, after *reservation.DueCursor, limit int) ([]reservation.Reservation, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", string(reservation.StatusActive), now)
	if after != nil {
		query = query.Where("(expires_at > ? OR (expires_at = ? AND id > ?))", after.ExpiresAt, after.ExpiresAt, after.ID)
	}

	var rows []models.ReservationModel
	if err := query.Order("expires_at ASC").Order("id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, reservation.NewStorageError("find due reservations", err)
	}
	return toReservations(rows), nil
}

// FindResolvedBetween returns reservations resolved in [from, to) with id greater than after, ordered by id
func (r *GormReservationRepository) FindResolvedBetween(ctx context.Context, from, to time.Time, after *uuid.UUID, limit int) ([]reservation.Reservation, error) {
	query := r.db.WithContext(ctx).
		Where("status <> ? AND resolved_at >= ? AND resolved_at < ?", string(reservation.StatusActive), from, to)
	if after != nil {
		query = query.Where("id > ?", *after)
	}

	var rows []models.ReservationModel
	if err := query.Order("id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, reservation.NewStorageError("find resolved reservations", err)
	}
	return toReservations(rows), nil
}

// Create inserts a new reservation
func (r *GormReservationRepository) Create(ctx context.Context, res *reservation.Reservation) error {
	model := models.ReservationModelFromDomain(res)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError("create reservation", res.ID.String(), 0, err)
	}
	return nil
}

// UpdateStatus persists a transition out of ACTIVE. The update only matches a row that is still
// ACTIVE, so a concurrent resolution makes it fail with ErrConcurrencyConflict.
func (r *GormReservationRepository) UpdateStatus(ctx context.Context, res *reservation.Reservation) error {
	result := r.db.WithContext(ctx).
		Model(&models.ReservationModel{}).
		Where("id = ? AND status = ?", res.ID, string(reservation.StatusActive)).
		Updates(map[string]any{
			"status":      string(res.Status),
			"resolved_at": res.ResolvedAt,
			"version":     res.Version,
			"updated_at":  res.UpdatedAt,
		})
	if result.Error != nil {
		return translateError("update reservation status", res.ID.String(), 0, result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.WrapDomainError(shared.CodeConcurrencyConflict,
			"Reservation was resolved by another transaction", shared.ErrConcurrencyConflict)
	}
	return nil
}

func toReservations(rows []models.ReservationModel) []reservation.Reservation {
	out := make([]reservation.Reservation, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

var _ reservation.ReservationRepository = (*GormReservationRepository)(nil)
