package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintValidateRoundTrip(t *testing.T) {
	mgr := NewManager(ManagerConfig{Secret: []byte("test-secret"), TTL: time.Minute})
	userID := uuid.New()

	token, err := mgr.Mint(userID, "Alex")
	require.NoError(t, err)

	claims, err := mgr.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "Alex", claims.DisplayName)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	minted := NewManager(ManagerConfig{Secret: []byte("secret-a")})
	verifier := NewManager(ManagerConfig{Secret: []byte("secret-b")})

	token, err := minted.Mint(uuid.New(), "Alex")
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	mgr := NewManager(ManagerConfig{Secret: []byte("test-secret"), TTL: -time.Minute})

	token, err := mgr.Mint(uuid.New(), "Alex")
	require.NoError(t, err)

	_, err = mgr.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateRejectsGarbage(t *testing.T) {
	mgr := NewManager(ManagerConfig{Secret: []byte("test-secret")})
	_, err := mgr.Validate("not.a.token")
	assert.Error(t, err)
}
