package handler

import (
	"context"
	"time"

	appreservation "github.com/erp/reservation/internal/application/reservation"
	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/erp/reservation/internal/domain/shared"
	"github.com/erp/reservation/internal/interfaces/http/dto"
	"github.com/erp/reservation/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReservationService is the reservation lifecycle the handler drives
type ReservationService interface {
	Reserve(ctx context.Context, cmd appreservation.ReserveCommand) (*appreservation.ReservationResponse, error)
	Confirm(ctx context.Context, id uuid.UUID) (*appreservation.ReservationResponse, error)
	Cancel(ctx context.Context, id uuid.UUID) (*appreservation.ReservationResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*appreservation.ReservationResponse, error)
	List(ctx context.Context, filter reservation.ReservationFilter) (*shared.Paginated[appreservation.ReservationResponse], error)
}

// ReservationHandler handles reservation API endpoints
type ReservationHandler struct {
	BaseHandler
	service    ReservationService
	defaultTTL time.Duration
}

// NewReservationHandler creates a new ReservationHandler. defaultTTL applies when a request
// omits ttl_seconds.
func NewReservationHandler(service ReservationService, defaultTTL time.Duration) *ReservationHandler {
	return &ReservationHandler{
		service:    service,
		defaultTTL: defaultTTL,
	}
}

// Create godoc
// @ID           createReservation
//
//	@Summary		Reserve stock
//	@Description	Hold quantity of a product in a warehouse for an owner document until it is confirmed, cancelled or expires
//	@Tags			reservations
//	@Accept			json
//	@Produce		json
//	@Param			Idempotency-Key	header		string							false	"Replays return the first reservation"
//	@Param			request			body		dto.CreateReservationRequest	true	"Reservation request"
//	@Success		201				{object}	APIResponse[appreservation.ReservationResponse]
//	@Failure		400				{object}	ErrorResponse
//	@Failure		401				{object}	ErrorResponse
//	@Failure		409				{object}	ErrorResponse
//	@Failure		422				{object}	ErrorResponse
//	@Failure		503				{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/reservations [post]
func (h *ReservationHandler) Create(c *gin.Context) {
	var req dto.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	owner, err := reservation.NewOwnerRef(req.Owner.Type, req.Owner.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	cmd := appreservation.ReserveCommand{
		Key: reservation.NewStockKey(
			uuid.MustParse(req.ProductID),
			uuid.MustParse(req.WarehouseID),
		),
		Quantity:       req.Quantity,
		TTL:            req.TTL(h.defaultTTL),
		Owner:          owner,
		IdempotencyKey: c.GetHeader(middleware.IdempotencyKeyHead),
	}

	resp, err := h.service.Reserve(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Get godoc
// @ID           getReservation
//
//	@Summary		Get a reservation
//	@Tags			reservations
//	@Produce		json
//	@Param			id	path		string	true	"Reservation ID"	format(uuid)
//	@Success		200	{object}	APIResponse[appreservation.ReservationResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/reservations/{id} [get]
func (h *ReservationHandler) Get(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// List godoc
// @ID           listReservations
//
//	@Summary		List reservations
//	@Description	Page through reservations filtered by key, status or owner
//	@Tags			reservations
//	@Produce		json
//	@Param			page			query		int		false	"Page number"	default(1)
//	@Param			page_size		query		int		false	"Page size"		default(20)	maximum(100)
//	@Param			order_by		query		string	false	"Sort column"	Enums(created_at, updated_at, expires_at, resolved_at, quantity, status)
//	@Param			order_dir		query		string	false	"Sort direction"	Enums(asc, desc)
//	@Param			product_id		query		string	false	"Product ID"	format(uuid)
//	@Param			warehouse_id	query		string	false	"Warehouse ID"	format(uuid)
//	@Param			status			query		string	false	"Status"	Enums(ACTIVE, CONFIRMED, CANCELLED, EXPIRED)
//	@Param			owner_type		query		string	false	"Owner document type"
//	@Param			owner_id		query		string	false	"Owner document ID"
//	@Success		200				{object}	ReservationListResponse
//	@Failure		400				{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/reservations [get]
func (h *ReservationHandler) List(c *gin.Context) {
	var req dto.ListReservationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	filter := reservation.ReservationFilter{
		Filter: shared.Filter{
			Page:     req.Page,
			PageSize: req.PageSize,
			OrderBy:  req.OrderBy,
			OrderDir: req.OrderDir,
		},
		OwnerType: req.OwnerType,
		OwnerID:   req.OwnerID,
	}
	if req.ProductID != "" {
		id := uuid.MustParse(req.ProductID)
		filter.ProductID = &id
	}
	if req.WarehouseID != "" {
		id := uuid.MustParse(req.WarehouseID)
		filter.WarehouseID = &id
	}
	if req.Status != "" {
		status := reservation.Status(req.Status)
		filter.Status = &status
	}

	page, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize, page.TotalPages)
}

// Confirm godoc
// @ID           confirmReservation
//
//	@Summary		Confirm a reservation
//	@Description	Turn an ACTIVE hold into a consumption of physical stock
//	@Tags			reservations
//	@Produce		json
//	@Param			id	path		string	true	"Reservation ID"	format(uuid)
//	@Success		200	{object}	APIResponse[appreservation.ReservationResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/reservations/{id}/confirm [post]
func (h *ReservationHandler) Confirm(c *gin.Context) {
	h.resolve(c, h.service.Confirm)
}

// Cancel godoc
// @ID           cancelReservation
//
//	@Summary		Cancel a reservation
//	@Description	Release an ACTIVE hold without touching physical stock
//	@Tags			reservations
//	@Produce		json
//	@Param			id	path		string	true	"Reservation ID"	format(uuid)
//	@Success		200	{object}	APIResponse[appreservation.ReservationResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/reservations/{id}/cancel [post]
func (h *ReservationHandler) Cancel(c *gin.Context) {
	h.resolve(c, h.service.Cancel)
}

func (h *ReservationHandler) resolve(c *gin.Context, fn func(context.Context, uuid.UUID) (*appreservation.ReservationResponse, error)) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := fn(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
