package auth

import (
	"testing"
	"time"

	"github.com/erp/reservation/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:          "test-secret-key-at-least-32-chars",
		Issuer:          "stock-reservation",
		TokenExpiration: time.Hour,
	})
}

func TestJWTService_GenerateAndValidate(t *testing.T) {
	svc := newTestJWTService()

	token, expiresAt, err := svc.GenerateServiceToken("order-service", []string{ScopeReservationsWrite})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "order-service", claims.Subject)
	assert.Equal(t, "stock-reservation", claims.Issuer)
	assert.True(t, claims.HasScope(ScopeReservationsWrite))
	assert.False(t, claims.HasScope(ScopeStockWrite))
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, expiresAt.Unix(), claims.GetExpiresAtTime().Unix())
}

func TestJWTService_RequiresSubject(t *testing.T) {
	_, _, err := newTestJWTService().GenerateServiceToken("", nil)
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestJWTService_ExpiredToken(t *testing.T) {
	svc := newTestJWTService()
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.GenerateServiceToken("svc", nil)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTService_NotYetValid(t *testing.T) {
	svc := newTestJWTService()
	svc.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	token, _, err := svc.GenerateServiceToken("svc", nil)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenNotYetValid)
}

func TestJWTService_WrongSecret(t *testing.T) {
	other := NewJWTService(config.JWTConfig{Secret: "another-secret-key-32-characters!", Issuer: "stock-reservation", TokenExpiration: time.Hour})
	token, _, err := other.GenerateServiceToken("svc", nil)
	require.NoError(t, err)

	_, err = newTestJWTService().ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_WrongIssuer(t *testing.T) {
	other := NewJWTService(config.JWTConfig{Secret: "test-secret-key-at-least-32-chars", Issuer: "someone-else", TokenExpiration: time.Hour})
	token, _, err := other.GenerateServiceToken("svc", nil)
	require.NoError(t, err)

	_, err = newTestJWTService().ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "svc", Issuer: "stock-reservation"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestJWTService().ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_Garbage(t *testing.T) {
	_, err := newTestJWTService().ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClaims_Scopes(t *testing.T) {
	admin := &Claims{Scopes: []string{ScopeAdmin}}
	assert.True(t, admin.HasScope(ScopeStockWrite))

	reader := &Claims{Scopes: []string{ScopeStockRead}}
	assert.True(t, reader.HasAnyScope(ScopeStockWrite, ScopeStockRead))
	assert.False(t, reader.HasAnyScope(ScopeStockWrite, ScopeReservationsWrite))
	assert.Len(t, AllScopes(), 5)
}
