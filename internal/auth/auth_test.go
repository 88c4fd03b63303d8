// file: internal/auth/auth_test.go
// version: 1.2.0
// guid: 76cc4659-15b0-429a-b75d-05fc25ee0ae1

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdfalk/playlist-archiver/internal/database"
	"github.com/jdfalk/playlist-archiver/internal/models"
)

func newTestGate(t *testing.T, ttl time.Duration) (*Gate, *database.MockStore) {
	t.Helper()
	db := &database.MockStore{}
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	require.NoError(t, db.CreateUser("admin", hash))
	return NewGate(db, ttl), db
}

func TestLoginAndVerify(t *testing.T) {
	gate, _ := newTestGate(t, time.Hour)

	token, err := gate.Login("admin", "hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := gate.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", subject)
}

func TestLoginRejections(t *testing.T) {
	gate, _ := newTestGate(t, time.Hour)

	_, wrongPass := gate.Login("admin", "wrong")
	_, unknownUser := gate.Login("nobody", "hunter2")

	assert.True(t, errors.Is(wrongPass, models.ErrUnauthorized))
	assert.True(t, errors.Is(unknownUser, models.ErrUnauthorized))
	// Both failures look identical to the caller.
	assert.Equal(t, wrongPass.Error(), unknownUser.Error())
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	gate, _ := newTestGate(t, time.Millisecond)

	token, err := gate.Login("admin", "hunter2")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = gate.Verify(token)
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	gate, _ := newTestGate(t, time.Hour)
	other, _ := newTestGate(t, time.Hour)

	token, err := other.Login("admin", "hunter2")
	require.NoError(t, err)

	_, err = gate.Verify(token)
	assert.True(t, errors.Is(err, models.ErrUnauthorized))

	_, err = gate.Verify("not-a-token")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
}

func TestSigningSecretPersists(t *testing.T) {
	db := &database.MockStore{}
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	require.NoError(t, db.CreateUser("u", hash))

	first := NewGate(db, time.Hour)
	token, err := first.Login("u", "pw")
	require.NoError(t, err)

	// A second gate over the same database must accept the token.
	second := NewGate(db, time.Hour)
	subject, err := second.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u", subject)
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gate, _ := newTestGate(t, time.Hour)

	router := gin.New()
	router.Use(gate.RequireAuth())
	router.GET("/protected", func(c *gin.Context) {
		user, ok := CurrentUser(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"user": user})
	})

	// Missing token.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Garbage token.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer junk")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token.
	token, err := gate.Login("admin", "hunter2")
	require.NoError(t, err)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "admin")
}
