package reservation

import "github.com/google/uuid"

// StockKey identifies the unit of contention: one product in one warehouse
type StockKey struct {
	ProductID   uuid.UUID `json:"product_id"`
	WarehouseID uuid.UUID `json:"warehouse_id"`
}

// NewStockKey creates a stock key
func NewStockKey(productID, warehouseID uuid.UUID) StockKey {
	return StockKey{ProductID: productID, WarehouseID: warehouseID}
}

// String renders the key as product:warehouse, used for guard names and logging
func (k StockKey) String() string {
	return k.ProductID.String() + ":" + k.WarehouseID.String()
}

// IsZero returns true if either half of the key is unset
func (k StockKey) IsZero() bool {
	return k.ProductID == uuid.Nil || k.WarehouseID == uuid.Nil
}
