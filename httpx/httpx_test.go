package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/quick-apply/database"
)

func TestCredentialsVerifier(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "control.sqlite"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, database.EnsureAdmin(context.Background(), db, "admin", "pw"))

	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	cv := &credentialsVerifier{db, func() time.Time { return now }}
	r := httptest.NewRequest(http.MethodPost, "/", nil)

	assert.NoError(t, cv.ValidateUser("admin", "pw", "", r))
	assert.Error(t, cv.ValidateUser("admin", "nope", "", r))
	assert.Error(t, cv.ValidateUser("ghost", "pw", "", r))

	require.NoError(t, cv.StoreTokenID(oauth.UserToken, "admin", "t1", "r1"))
	assert.NoError(t, cv.ValidateTokenID(oauth.UserToken, "admin", "t1", "r1"))
	// refresh tokens are single use
	assert.Error(t, cv.ValidateTokenID(oauth.UserToken, "admin", "t1", "r1"))

	require.NoError(t, cv.StoreTokenID(oauth.UserToken, "admin", "t2", "r2"))
	now = now.Add(RefreshTTL + time.Second)
	assert.Error(t, cv.ValidateTokenID(oauth.UserToken, "admin", "t2", "r2"))
}

func TestResponseBuffer(t *testing.T) {
	buf := NewResponseBuffer()
	assert.Zero(t, buf.Status())
	assert.Nil(t, buf.Body())

	buf.Header().Set("X-Test", "1")
	buf.Write([]byte("hello"))
	assert.Equal(t, http.StatusOK, buf.Status())

	rec := httptest.NewRecorder()
	require.NoError(t, buf.Flush(rec))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Test"))
	assert.Equal(t, "hello", rec.Body.String())
}

func TestLogStatusJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/apply", nil)

	LogStatusJSON(rec, r, http.StatusUnprocessableEntity, "submit.invalid", "invalid application", []string{"email"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"error":"invalid application","details":["email"]}`, rec.Body.String())
}
