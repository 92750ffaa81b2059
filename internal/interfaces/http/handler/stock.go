package handler

import (
	"context"

	appreservation "github.com/erp/reservation/internal/application/reservation"
	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/erp/reservation/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AvailabilityReader answers availability queries
type AvailabilityReader interface {
	Available(ctx context.Context, key reservation.StockKey) (*appreservation.Availability, error)
}

// StockLedger moves physical stock
type StockLedger interface {
	Receive(ctx context.Context, key reservation.StockKey, quantity decimal.Decimal) (*appreservation.Availability, error)
	Adjust(ctx context.Context, key reservation.StockKey, counted decimal.Decimal, reason string) (*appreservation.Availability, error)
}

// StockHandler handles stock availability and ledger endpoints
type StockHandler struct {
	BaseHandler
	availability AvailabilityReader
	ledger       StockLedger
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(availability AvailabilityReader, ledger StockLedger) *StockHandler {
	return &StockHandler{
		availability: availability,
		ledger:       ledger,
	}
}

func (h *StockHandler) bindKey(c *gin.Context) (reservation.StockKey, bool) {
	var params dto.StockPathParams
	if err := c.ShouldBindUri(&params); err != nil {
		h.BindingError(c, err)
		return reservation.StockKey{}, false
	}
	return reservation.NewStockKey(uuid.MustParse(params.ProductID), uuid.MustParse(params.WarehouseID)), true
}

// GetAvailability godoc
// @ID           getStockAvailability
//
//	@Summary		Get availability
//	@Description	Physical, reserved and available quantity of a product in a warehouse
//	@Tags			stock
//	@Produce		json
//	@Param			product_id		path		string	true	"Product ID"	format(uuid)
//	@Param			warehouse_id	path		string	true	"Warehouse ID"	format(uuid)
//	@Success		200				{object}	APIResponse[dto.AvailabilityResponse]
//	@Failure		400				{object}	ErrorResponse
//	@Failure		503				{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/stock/{product_id}/{warehouse_id} [get]
func (h *StockHandler) GetAvailability(c *gin.Context) {
	key, ok := h.bindKey(c)
	if !ok {
		return
	}
	availability, err := h.availability.Available(c.Request.Context(), key)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToAvailabilityResponse(availability))
}

// Receive godoc
// @ID           receiveStock
//
//	@Summary		Receive stock
//	@Description	Add received goods to the physical quantity
//	@Tags			stock
//	@Accept			json
//	@Produce		json
//	@Param			product_id		path		string					true	"Product ID"	format(uuid)
//	@Param			warehouse_id	path		string					true	"Warehouse ID"	format(uuid)
//	@Param			request			body		dto.ReceiveStockRequest	true	"Received quantity"
//	@Success		200				{object}	APIResponse[dto.AvailabilityResponse]
//	@Failure		400				{object}	ErrorResponse
//	@Failure		503				{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/stock/{product_id}/{warehouse_id}/receive [post]
func (h *StockHandler) Receive(c *gin.Context) {
	key, ok := h.bindKey(c)
	if !ok {
		return
	}
	var req dto.ReceiveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	availability, err := h.ledger.Receive(c.Request.Context(), key, req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToAvailabilityResponse(availability))
}

// Adjust godoc
// @ID           adjustStock
//
//	@Summary		Adjust stock to a counted quantity
//	@Description	Set the physical quantity after a stock count. It may not drop below the reserved quantity.
//	@Tags			stock
//	@Accept			json
//	@Produce		json
//	@Param			product_id		path		string					true	"Product ID"	format(uuid)
//	@Param			warehouse_id	path		string					true	"Warehouse ID"	format(uuid)
//	@Param			request			body		dto.AdjustStockRequest	true	"Counted quantity"
//	@Success		200				{object}	APIResponse[dto.AvailabilityResponse]
//	@Failure		400				{object}	ErrorResponse
//	@Failure		422				{object}	ErrorResponse
//	@Failure		503				{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/stock/{product_id}/{warehouse_id} [put]
func (h *StockHandler) Adjust(c *gin.Context) {
	key, ok := h.bindKey(c)
	if !ok {
		return
	}
	var req dto.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	availability, err := h.ledger.Adjust(c.Request.Context(), key, req.Quantity, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToAvailabilityResponse(availability))
}
