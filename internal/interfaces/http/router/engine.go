package router

import (
	"github.com/erp/reservation/internal/infrastructure/auth"
	"github.com/erp/reservation/internal/infrastructure/config"
	"github.com/erp/reservation/internal/infrastructure/logger"
	"github.com/erp/reservation/internal/interfaces/http/handler"
	"github.com/erp/reservation/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	// Registers the OpenAPI document served under /swagger
	_ "github.com/erp/reservation/docs"
)

// Handlers groups the HTTP handlers mounted by NewEngine
type Handlers struct {
	Reservation *handler.ReservationHandler
	Stock       *handler.StockHandler
	Admin       *handler.AdminHandler
	Health      *handler.HealthHandler
}

// EngineConfig carries what NewEngine needs beyond the handlers
type EngineConfig struct {
	HTTP        config.HTTPConfig
	Swagger     config.SwaggerConfig
	Telemetry   config.TelemetryConfig
	Profiling   bool
	JWTService  *auth.JWTService
	Meter       metric.Meter
	Logger      *zap.Logger
	ServiceName string
}

// NewEngine builds the gin engine with the full middleware chain and every route
func NewEngine(cfg EngineConfig, h Handlers) (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}
	middleware.SetupValidator()

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(cfg.Logger),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(cfg.Logger),
		middleware.Secure(),
		middleware.CORSWithConfig(middleware.CORSConfigFromHTTP(cfg.HTTP)),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)
	if cfg.Meter != nil {
		engine.Use(middleware.HTTPMetrics(cfg.Meter, cfg.Logger))
	}

	engine.GET("/health", h.Health.Live)
	engine.GET("/ready", h.Health.Ready)

	var jwtMiddleware gin.HandlerFunc
	if cfg.HTTP.AuthEnabled && cfg.JWTService != nil {
		jwtMiddleware = middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
			JWTService: cfg.JWTService,
			Logger:     cfg.Logger,
		})
	}
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(cfg.Swagger, jwtMiddleware),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	r := NewRouter(engine, WithAPIVersion("v1"))
	if jwtMiddleware != nil {
		r.Use(jwtMiddleware)
	}
	r.Use(middleware.ProfilingWithConfig(middleware.ProfilingConfig{Enabled: cfg.Profiling}))

	r.Register(ReservationRoutes(h.Reservation)).
		Register(StockRoutes(h.Stock)).
		Register(AdminRoutes(h.Admin))
	r.Setup()

	return engine, nil
}

// ReservationRoutes mounts the reservation lifecycle under /reservations
func ReservationRoutes(h *handler.ReservationHandler) *DomainGroup {
	read := middleware.RequireScope(auth.ScopeReservationsRead)
	write := middleware.RequireScope(auth.ScopeReservationsWrite)

	return NewDomainGroup("reservations", "/reservations").
		POST("", write, h.Create).
		GET("", read, h.List).
		GET("/:id", read, h.Get).
		POST("/:id/confirm", write, h.Confirm).
		POST("/:id/cancel", write, h.Cancel)
}

// StockRoutes mounts availability and stock movements under /stock
func StockRoutes(h *handler.StockHandler) *DomainGroup {
	read := middleware.RequireScope(auth.ScopeStockRead)
	write := middleware.RequireScope(auth.ScopeStockWrite)

	return NewDomainGroup("stock", "/stock").
		GET("/:product_id/:warehouse_id", read, h.GetAvailability).
		PUT("/:product_id/:warehouse_id", write, h.Adjust).
		POST("/:product_id/:warehouse_id/receive", write, h.Receive)
}

// AdminRoutes mounts operator endpoints under /admin
func AdminRoutes(h *handler.AdminHandler) *DomainGroup {
	return NewDomainGroup("admin", "/admin").
		Use(middleware.RequireScope(auth.ScopeAdmin)).
		POST("/sweeps", h.TriggerSweep).
		GET("/sweeps/last", h.LastSweep).
		POST("/archives", h.CreateArchive)
}
