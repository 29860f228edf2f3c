package jwt

import (
	"testing"
	"time"

	"clinic-appointment-service/config"
	"clinic-appointment-service/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: "test-secret", AccessExpiry: time.Minute})
	userID := uuid.New()

	token, err := svc.GenerateToken(userID, "patient@example.com", entity.RolePatient)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "patient@example.com", claims.Email)
	assert.Equal(t, entity.RolePatient, claims.Role)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTService(config.JWTConfig{Secret: "secret-a", AccessExpiry: time.Minute})
	verifier := NewJWTService(config.JWTConfig{Secret: "secret-b", AccessExpiry: time.Minute})

	token, err := issuer.GenerateToken(uuid.New(), "x@example.com", entity.RoleAdmin)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: "test-secret", AccessExpiry: -time.Minute})

	token, err := svc.GenerateToken(uuid.New(), "x@example.com", entity.RolePatient)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
