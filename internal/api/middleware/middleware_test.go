package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/safar/go-shop-orders/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	secret := []byte("s3cret")
	id := uuid.New()

	tok, err := IssueToken(secret, id, models.RoleAdmin, time.Minute)
	require.NoError(t, err)

	p, err := ParseToken(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, id, p.UserID)
	assert.True(t, p.IsAdmin())

	_, err = ParseToken([]byte("other"), tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := IssueToken(secret, id, models.RoleUser, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(secret, expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLoggerRecoversAndRecordsUser(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	secret := []byte("s3cret")
	id := uuid.New()

	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	h := RequestID(Logger(&logger)(Auth(secret)(panicking)))

	tok, err := IssueToken(secret, id, models.RoleUser, time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/orders/myorders", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))

	out := buf.String()
	assert.Contains(t, out, `"message":"request panicked"`)
	assert.Contains(t, out, `"message":"request completed"`)
	assert.Contains(t, out, `"status":500`)
	assert.Contains(t, out, id.String())
	assert.Contains(t, out, `"request_id":"req-42"`)
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	RequireAdmin(ok).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = req.WithContext(WithPrincipal(req.Context(), Principal{UserID: uuid.New(), Role: models.RoleAdmin}))
	rec = httptest.NewRecorder()
	RequireAdmin(ok).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
