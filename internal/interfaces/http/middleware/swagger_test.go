package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/reservation/internal/infrastructure/auth"
	"github.com/erp/reservation/internal/infrastructure/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func swaggerRouter(cfg config.SwaggerConfig, jwt gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.GET("/swagger/*any", SwaggerProtection(cfg, jwt), func(c *gin.Context) {
		c.String(http.StatusOK, "docs")
	})
	return router
}

func TestSwaggerProtection(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		w := httptest.NewRecorder()
		swaggerRouter(config.SwaggerConfig{}, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("enabled", func(t *testing.T) {
		w := httptest.NewRecorder()
		swaggerRouter(config.SwaggerConfig{Enabled: true}, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("ip allow list", func(t *testing.T) {
		router := swaggerRouter(config.SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.0.0.0/8", "192.168.1.7"}}, nil)

		req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
		req.RemoteAddr = "10.1.2.3:5555"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		req = httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("require auth", func(t *testing.T) {
		svc := newTestJWTService()
		jwt := JWTAuthMiddlewareWithConfig(JWTMiddlewareConfig{JWTService: svc})
		router := swaggerRouter(config.SwaggerConfig{Enabled: true, RequireAuth: true}, jwt)

		w := serveWithToken(router, http.MethodGet, "/swagger/index.html", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = serveWithToken(router, http.MethodGet, "/swagger/index.html", newTestToken(t, svc, auth.ScopeReservationsRead))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
