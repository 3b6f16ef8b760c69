package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amiyamandal-dev/repoportal/internal/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var reader = &domain.User{ID: "42", Username: "ana", Role: domain.RoleReader}

func TestInspectVerified(t *testing.T) {
	m := NewTokenInspector(testSecret)

	token, expiresAt, err := m.Sign(reader, time.Hour)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := m.Inspect(token)
	require.NoError(t, err)
	assert.Equal(t, domain.ID("42"), claims.UserID)
	assert.Equal(t, "ana", claims.User().Username)
	assert.False(t, claims.User().IsAdmin())
}

func TestInspectRejectsWrongSecret(t *testing.T) {
	token, _, err := NewTokenInspector(testSecret).Sign(reader, time.Hour)
	require.NoError(t, err)

	_, err = NewTokenInspector("ffffffffffffffffffffffffffffffff").Inspect(token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestInspectExpired(t *testing.T) {
	m := NewTokenInspector(testSecret)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := m.Sign(reader, time.Hour)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Inspect(token)
	assert.ErrorIs(t, err, domain.ErrExpiredToken)

	_, err = NewTokenInspector("").Inspect(token)
	assert.ErrorIs(t, err, domain.ErrExpiredToken)
}

func TestInspectUnverified(t *testing.T) {
	token, _, err := NewTokenInspector(testSecret).Sign(&domain.User{ID: "1", Username: "root", Role: domain.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	m := NewTokenInspector("")
	assert.False(t, m.Verifies())
	claims, err := m.Inspect(token)
	require.NoError(t, err)
	assert.True(t, claims.User().IsAdmin())

	_, err = m.Inspect("not-a-token")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
	_, err = m.Inspect("")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, _, err = m.Sign(reader, time.Hour)
	assert.Error(t, err)
}
