package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appreservation "github.com/erp/reservation/internal/application/reservation"
	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/erp/reservation/internal/domain/shared"
	"github.com/erp/reservation/internal/infrastructure/scheduler"
	"github.com/erp/reservation/internal/interfaces/http/dto"
	"github.com/erp/reservation/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

type decodedResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, decodedResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var resp decodedResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func newEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RequestID())
	return engine
}

// fakeReservations records the last call and returns canned results
type fakeReservations struct {
	lastCmd    appreservation.ReserveCommand
	lastFilter reservation.ReservationFilter
	lastID     uuid.UUID
	resp       *appreservation.ReservationResponse
	err        error
}

func (f *fakeReservations) Reserve(_ context.Context, cmd appreservation.ReserveCommand) (*appreservation.ReservationResponse, error) {
	f.lastCmd = cmd
	return f.resp, f.err
}

func (f *fakeReservations) Confirm(_ context.Context, id uuid.UUID) (*appreservation.ReservationResponse, error) {
	f.lastID = id
	return f.resp, f.err
}

func (f *fakeReservations) Cancel(_ context.Context, id uuid.UUID) (*appreservation.ReservationResponse, error) {
	f.lastID = id
	return f.resp, f.err
}

func (f *fakeReservations) Get(_ context.Context, id uuid.UUID) (*appreservation.ReservationResponse, error) {
	f.lastID = id
	return f.resp, f.err
}

func (f *fakeReservations) List(_ context.Context, filter reservation.ReservationFilter) (*shared.Paginated[appreservation.ReservationResponse], error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	page := shared.NewPaginated([]appreservation.ReservationResponse{*f.resp}, 41, 3, 20)
	return &page, nil
}

func reservationEngine(svc *fakeReservations) *gin.Engine {
	h := NewReservationHandler(svc, 15*time.Minute)
	engine := newEngine()
	engine.POST("/reservations", h.Create)
	engine.GET("/reservations", h.List)
	engine.GET("/reservations/:id", h.Get)
	engine.POST("/reservations/:id/confirm", h.Confirm)
	engine.POST("/reservations/:id/cancel", h.Cancel)
	return engine
}

func createBody(productID, warehouseID uuid.UUID) map[string]any {
	return map[string]any{
		"product_id":   productID.String(),
		"warehouse_id": warehouseID.String(),
		"quantity":     "5",
		"owner":        map[string]string{"type": "sales_order", "id": "SO-1"},
	}
}

func TestReservationHandler_Create(t *testing.T) {
	productID, warehouseID := uuid.New(), uuid.New()

	t.Run("created with default ttl and idempotency key", func(t *testing.T) {
		svc := &fakeReservations{resp: &appreservation.ReservationResponse{ID: uuid.New(), Status: reservation.StatusActive}}
		w, resp := doJSON(t, reservationEngine(svc), http.MethodPost, "/reservations",
			createBody(productID, warehouseID), map[string]string{middleware.IdempotencyKeyHead: "checkout-77"})

		require.Equal(t, http.StatusCreated, w.Code)
		assert.True(t, resp.Success)
		assert.Equal(t, reservation.NewStockKey(productID, warehouseID), svc.lastCmd.Key)
		assert.True(t, decimal.NewFromInt(5).Equal(svc.lastCmd.Quantity))
		assert.Equal(t, 15*time.Minute, svc.lastCmd.TTL)
		assert.Equal(t, "sales_order/SO-1", svc.lastCmd.Owner.String())
		assert.Equal(t, "checkout-77", svc.lastCmd.IdempotencyKey)
	})

	t.Run("explicit ttl", func(t *testing.T) {
		svc := &fakeReservations{resp: &appreservation.ReservationResponse{}}
		body := createBody(productID, warehouseID)
		body["ttl_seconds"] = 60
		w, _ := doJSON(t, reservationEngine(svc), http.MethodPost, "/reservations", body, nil)

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, time.Minute, svc.lastCmd.TTL)
	})

	t.Run("ttl beyond one year is rejected before conversion", func(t *testing.T) {
		svc := &fakeReservations{resp: &appreservation.ReservationResponse{}}
		body := createBody(productID, warehouseID)
		body["ttl_seconds"] = int64(9223372037)
		w, resp := doJSON(t, reservationEngine(svc), http.MethodPost, "/reservations", body, nil)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "ttl_seconds", resp.Error.Details[0].Field)
		assert.Zero(t, svc.lastCmd.TTL)
	})

	t.Run("invalid product id", func(t *testing.T) {
		body := createBody(productID, warehouseID)
		body["product_id"] = "not-a-uuid"
		w, resp := doJSON(t, reservationEngine(&fakeReservations{}), http.MethodPost, "/reservations", body, nil)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "product_id", resp.Error.Details[0].Field)
	})

	t.Run("blank owner id", func(t *testing.T) {
		body := createBody(productID, warehouseID)
		body["owner"] = map[string]string{"type": "sales_order", "id": "   "}
		w, resp := doJSON(t, reservationEngine(&fakeReservations{}), http.MethodPost, "/reservations", body, nil)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, reservation.CodeInvalidOwner, resp.Error.Code)
	})

	t.Run("insufficient stock", func(t *testing.T) {
		svc := &fakeReservations{err: &reservation.InsufficientStockError{
			Key:       reservation.NewStockKey(productID, warehouseID),
			Requested: decimal.NewFromInt(5),
			Available: decimal.NewFromInt(3),
		}}
		w, resp := doJSON(t, reservationEngine(svc), http.MethodPost, "/reservations", createBody(productID, warehouseID), nil)

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, shared.CodeInsufficientStock, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "available 3")
		assert.NotEmpty(t, resp.Error.RequestID)
	})

	t.Run("lock timeout", func(t *testing.T) {
		svc := &fakeReservations{err: &reservation.LockTimeoutError{Key: "k", Waited: 2 * time.Second}}
		w, resp := doJSON(t, reservationEngine(svc), http.MethodPost, "/reservations", createBody(productID, warehouseID), nil)

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, shared.CodeLockTimeout, resp.Error.Code)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
	})

	t.Run("idempotency key in flight", func(t *testing.T) {
		svc := &fakeReservations{err: shared.NewDomainError(shared.CodeIdempotencyInProgress, "request already in progress")}
		w, _ := doJSON(t, reservationEngine(svc), http.MethodPost, "/reservations", createBody(productID, warehouseID), nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("storage error is opaque", func(t *testing.T) {
		svc := &fakeReservations{err: &reservation.StorageError{Op: "insert", Err: errors.New("pq: relation missing")}}
		w, resp := doJSON(t, reservationEngine(svc), http.MethodPost, "/reservations", createBody(productID, warehouseID), nil)

		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, shared.CodeStorage, resp.Error.Code)
		assert.NotContains(t, resp.Error.Message, "pq")
	})

	t.Run("malformed json", func(t *testing.T) {
		w, resp := doJSON(t, reservationEngine(&fakeReservations{}), http.MethodPost, "/reservations", `{"product_id":`, nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
	})
}

func TestReservationHandler_Resolve(t *testing.T) {
	id := uuid.New()

	t.Run("confirm", func(t *testing.T) {
		svc := &fakeReservations{resp: &appreservation.ReservationResponse{ID: id, Status: reservation.StatusConfirmed}}
		w, resp := doJSON(t, reservationEngine(svc), http.MethodPost, "/reservations/"+id.String()+"/confirm", nil, nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, id, svc.lastID)
		var got appreservation.ReservationResponse
		require.NoError(t, json.Unmarshal(resp.Data, &got))
		assert.Equal(t, reservation.StatusConfirmed, got.Status)
	})

	t.Run("cancel of resolved reservation", func(t *testing.T) {
		svc := &fakeReservations{err: &reservation.InvalidStateError{ID: id, Current: reservation.StatusExpired, Attempted: reservation.StatusCancelled}}
		w, resp := doJSON(t, reservationEngine(svc), http.MethodPost, "/reservations/"+id.String()+"/cancel", nil, nil)

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, shared.CodeInvalidState, resp.Error.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		svc := &fakeReservations{err: &reservation.ReservationNotFoundError{ID: id}}
		w, _ := doJSON(t, reservationEngine(svc), http.MethodGet, "/reservations/"+id.String(), nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w, resp := doJSON(t, reservationEngine(&fakeReservations{}), http.MethodPost, "/reservations/123/confirm", nil, nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	})
}

func TestReservationHandler_List(t *testing.T) {
	productID := uuid.New()
	svc := &fakeReservations{resp: &appreservation.ReservationResponse{ID: uuid.New()}}

	w, resp := doJSON(t, reservationEngine(svc), http.MethodGet,
		"/reservations?page=3&page_size=20&status=ACTIVE&owner_type=quote&product_id="+productID.String(), nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(41), resp.Meta.Total)
	assert.Equal(t, 3, resp.Meta.TotalPages)

	f := svc.lastFilter
	assert.Equal(t, 3, f.Page)
	require.NotNil(t, f.Status)
	assert.Equal(t, reservation.StatusActive, *f.Status)
	require.NotNil(t, f.ProductID)
	assert.Equal(t, productID, *f.ProductID)
	assert.Nil(t, f.WarehouseID)
	assert.Equal(t, "quote", f.OwnerType)

	w, _ = doJSON(t, reservationEngine(svc), http.MethodGet, "/reservations?status=PENDING", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type fakeStock struct {
	lastKey    reservation.StockKey
	lastQty    decimal.Decimal
	lastReason string
	err        error
}

func (f *fakeStock) availability(key reservation.StockKey) *appreservation.Availability {
	return &appreservation.Availability{
		Key:       key,
		Physical:  decimal.NewFromInt(10),
		Reserved:  decimal.NewFromInt(4),
		Available: decimal.NewFromInt(6),
	}
}

func (f *fakeStock) Available(_ context.Context, key reservation.StockKey) (*appreservation.Availability, error) {
	f.lastKey = key
	if f.err != nil {
		return nil, f.err
	}
	return f.availability(key), nil
}

func (f *fakeStock) Receive(_ context.Context, key reservation.StockKey, qty decimal.Decimal) (*appreservation.Availability, error) {
	f.lastKey, f.lastQty = key, qty
	if f.err != nil {
		return nil, f.err
	}
	return f.availability(key), nil
}

func (f *fakeStock) Adjust(_ context.Context, key reservation.StockKey, counted decimal.Decimal, reason string) (*appreservation.Availability, error) {
	f.lastKey, f.lastQty, f.lastReason = key, counted, reason
	if f.err != nil {
		return nil, f.err
	}
	return f.availability(key), nil
}

func stockEngine(f *fakeStock) *gin.Engine {
	h := NewStockHandler(f, f)
	engine := newEngine()
	engine.GET("/stock/:product_id/:warehouse_id", h.GetAvailability)
	engine.PUT("/stock/:product_id/:warehouse_id", h.Adjust)
	engine.POST("/stock/:product_id/:warehouse_id/receive", h.Receive)
	return engine
}

func TestStockHandler(t *testing.T) {
	productID, warehouseID := uuid.New(), uuid.New()
	path := "/stock/" + productID.String() + "/" + warehouseID.String()

	t.Run("availability", func(t *testing.T) {
		f := &fakeStock{}
		w, resp := doJSON(t, stockEngine(f), http.MethodGet, path, nil, nil)

		require.Equal(t, http.StatusOK, w.Code)
		var got dto.AvailabilityResponse
		require.NoError(t, json.Unmarshal(resp.Data, &got))
		assert.Equal(t, productID, got.ProductID)
		assert.True(t, decimal.NewFromInt(6).Equal(got.Available))
	})

	t.Run("receive", func(t *testing.T) {
		f := &fakeStock{}
		w, _ := doJSON(t, stockEngine(f), http.MethodPost, path+"/receive", map[string]any{"quantity": "7.5"}, nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, reservation.NewStockKey(productID, warehouseID), f.lastKey)
		assert.Equal(t, "7.5", f.lastQty.String())
	})

	t.Run("adjust requires a reason", func(t *testing.T) {
		w, _ := doJSON(t, stockEngine(&fakeStock{}), http.MethodPut, path, map[string]any{"quantity": "3"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("adjust below reserved", func(t *testing.T) {
		f := &fakeStock{err: shared.NewDomainError(shared.CodeInsufficientStock, "counted quantity is below reserved quantity")}
		w, _ := doJSON(t, stockEngine(f), http.MethodPut, path, map[string]any{"quantity": "3", "reason": "cycle count"}, nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "cycle count", f.lastReason)
	})

	t.Run("bad key", func(t *testing.T) {
		w, resp := doJSON(t, stockEngine(&fakeStock{}), http.MethodGet, "/stock/abc/"+warehouseID.String(), nil, nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	})
}

type fakeSweeps struct {
	stats *appreservation.SweepStats
	err   error
	last  *scheduler.SweepRun
}

func (f *fakeSweeps) TriggerNow(context.Context) (*appreservation.SweepStats, error) {
	return f.stats, f.err
}

func (f *fakeSweeps) LastRun() *scheduler.SweepRun { return f.last }

type fakeArchiver struct {
	from, to time.Time
}

func (f *fakeArchiver) Export(_ context.Context, from, to time.Time) (*appreservation.ArchiveResult, error) {
	f.from, f.to = from, to
	return &appreservation.ArchiveResult{StorageKey: "reservations/x.jsonl", Count: 2, From: from, To: to}, nil
}

func adminEngine(sweeps SweepRunner, archiver Archiver) *gin.Engine {
	h := NewAdminHandler(sweeps, archiver)
	engine := newEngine()
	engine.POST("/admin/sweeps", h.TriggerSweep)
	engine.GET("/admin/sweeps/last", h.LastSweep)
	engine.POST("/admin/archives", h.CreateArchive)
	return engine
}

func TestAdminHandler(t *testing.T) {
	t.Run("sweep", func(t *testing.T) {
		sweeps := &fakeSweeps{stats: &appreservation.SweepStats{Released: 3}}
		w, resp := doJSON(t, adminEngine(sweeps, nil), http.MethodPost, "/admin/sweeps", nil, nil)

		require.Equal(t, http.StatusOK, w.Code)
		var got appreservation.SweepStats
		require.NoError(t, json.Unmarshal(resp.Data, &got))
		assert.Equal(t, 3, got.Released)
	})

	t.Run("sweep already running", func(t *testing.T) {
		w, resp := doJSON(t, adminEngine(&fakeSweeps{err: scheduler.ErrSweepInProgress}, nil), http.MethodPost, "/admin/sweeps", nil, nil)
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, scheduler.CodeSweepInProgress, resp.Error.Code)
	})

	t.Run("last sweep", func(t *testing.T) {
		w, _ := doJSON(t, adminEngine(&fakeSweeps{}, nil), http.MethodGet, "/admin/sweeps/last", nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		sweeps := &fakeSweeps{last: &scheduler.SweepRun{Stats: &appreservation.SweepStats{Failed: 1}, Err: context.DeadlineExceeded}}
		w, resp := doJSON(t, adminEngine(sweeps, nil), http.MethodGet, "/admin/sweeps/last", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got SweepRunResponse
		require.NoError(t, json.Unmarshal(resp.Data, &got))
		assert.Equal(t, 1, got.Stats.Failed)
		assert.Equal(t, context.DeadlineExceeded.Error(), got.Error)
	})

	t.Run("archive", func(t *testing.T) {
		archiver := &fakeArchiver{}
		from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 1, 0)
		w, _ := doJSON(t, adminEngine(&fakeSweeps{}, archiver), http.MethodPost, "/admin/archives",
			map[string]any{"from": from, "to": to}, nil)

		require.Equal(t, http.StatusCreated, w.Code)
		assert.True(t, from.Equal(archiver.from))
		assert.True(t, to.Equal(archiver.to))
	})

	t.Run("archive window must be ordered", func(t *testing.T) {
		from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		w, _ := doJSON(t, adminEngine(&fakeSweeps{}, &fakeArchiver{}), http.MethodPost, "/admin/archives",
			map[string]any{"from": from, "to": from.Add(-time.Hour)}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("archive not configured", func(t *testing.T) {
		w, _ := doJSON(t, adminEngine(&fakeSweeps{}, nil), http.MethodPost, "/admin/archives", nil, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestHealthHandler(t *testing.T) {
	checks := map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}
	h := NewHealthHandler(checks, time.Second)
	engine := gin.New()
	engine.GET("/health", h.Live)
	engine.GET("/ready", h.Ready)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unavailable", resp.Status)
	assert.Equal(t, "ok", resp.Checks["database"])
	assert.Equal(t, "connection refused", resp.Checks["redis"])
}
