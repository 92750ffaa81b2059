package handler

import (
	"context"
	"net/http"
	"time"

	appreservation "github.com/erp/reservation/internal/application/reservation"
	"github.com/erp/reservation/internal/domain/shared"
	"github.com/erp/reservation/internal/infrastructure/scheduler"
	"github.com/erp/reservation/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// SweepRunner runs the expiration sweep on demand
type SweepRunner interface {
	TriggerNow(ctx context.Context) (*appreservation.SweepStats, error)
	LastRun() *scheduler.SweepRun
}

// Archiver exports resolved reservations
type Archiver interface {
	Export(ctx context.Context, from, to time.Time) (*appreservation.ArchiveResult, error)
}

// AdminHandler exposes operator endpoints. Archiver may be nil when archiving is not configured.
type AdminHandler struct {
	BaseHandler
	sweeps   SweepRunner
	archiver Archiver
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(sweeps SweepRunner, archiver Archiver) *AdminHandler {
	return &AdminHandler{
		sweeps:   sweeps,
		archiver: archiver,
	}
}

// TriggerSweep godoc
// @ID           triggerSweep
//
//	@Summary		Run the expiration sweep now
//	@Description	Release every ACTIVE reservation past its deadline. Fails with 409 while another sweep runs.
//	@Tags			admin
//	@Produce		json
//	@Success		200	{object}	APIResponse[appreservation.SweepStats]
//	@Failure		409	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/admin/sweeps [post]
func (h *AdminHandler) TriggerSweep(c *gin.Context) {
	stats, err := h.sweeps.TriggerNow(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// LastSweep godoc
// @ID           getLastSweep
//
//	@Summary		Latest sweep outcome
//	@Tags			admin
//	@Produce		json
//	@Success		200	{object}	APIResponse[SweepRunResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/admin/sweeps/last [get]
func (h *AdminHandler) LastSweep(c *gin.Context) {
	run := h.sweeps.LastRun()
	if run == nil {
		h.Error(c, http.StatusNotFound, shared.CodeNotFound, "No sweep has run yet")
		return
	}
	resp := SweepRunResponse{Stats: run.Stats}
	if run.Err != nil {
		resp.Error = run.Err.Error()
	}
	h.Success(c, resp)
}

// CreateArchive godoc
// @ID           createArchive
//
//	@Summary		Archive resolved reservations
//	@Description	Export reservations resolved in [from, to) to object storage as JSON Lines
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.CreateArchiveRequest	true	"Archive window"
//	@Success		201		{object}	APIResponse[appreservation.ArchiveResult]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/admin/archives [post]
func (h *AdminHandler) CreateArchive(c *gin.Context) {
	if h.archiver == nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeUnavailable), dto.ErrCodeUnavailable, "Archive storage is not configured")
		return
	}
	var req dto.CreateArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	result, err := h.archiver.Export(c.Request.Context(), req.From, req.To)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}
