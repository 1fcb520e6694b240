package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicledger/internal/core/apperror"
	"clinicledger/internal/infrastructure/http/v1/middleware"
	"clinicledger/internal/infrastructure/storage/memory"
)

// newKeyedEngine serves POST /things with handler behind the error and
// idempotency middleware, counting how often the handler runs.
func newKeyedEngine(t *testing.T, handler func(c *gin.Context, call int)) (*gin.Engine, *int) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	calls := 0
	r := gin.New()
	r.Use(middleware.ErrorHandler(), middleware.Idempotency(memory.New()))
	r.POST("/things", func(c *gin.Context) {
		calls++
		handler(c, calls)
	})
	return r, &calls
}

func post(r *gin.Engine, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/things", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderIdempotencyKey, key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ServerErrorReleasesKey(t *testing.T) {
	r, calls := newKeyedEngine(t, func(c *gin.Context, call int) {
		if call == 1 {
			_ = c.Error(apperror.NewPersistence(errors.New("connection reset")))
			c.Abort()
			return
		}
		middleware.CompleteIdempotency(c, http.StatusCreated, "application/json", gin.H{"ok": true})
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	first := post(r, "key-5xx", `{"a":1}`)
	assert.Equal(t, http.StatusServiceUnavailable, first.Code)

	retry := post(r, "key-5xx", `{"a":1}`)
	assert.Equal(t, http.StatusCreated, retry.Code)
	assert.Empty(t, retry.Header().Get("Idempotent-Replay"))
	assert.Equal(t, 2, *calls)

	replay := post(r, "key-5xx", `{"a":1}`)
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replay"))
	assert.Equal(t, 2, *calls)
}

func TestIdempotency_ClientErrorIsReplayed(t *testing.T) {
	r, calls := newKeyedEngine(t, func(c *gin.Context, call int) {
		_ = c.Error(apperror.NewValidation("bad input"))
		c.Abort()
	})

	first := post(r, "key-4xx", `{"a":1}`)
	require.Equal(t, http.StatusBadRequest, first.Code)

	retry := post(r, "key-4xx", `{"a":1}`)
	assert.Equal(t, http.StatusBadRequest, retry.Code)
	assert.Equal(t, "true", retry.Header().Get("Idempotent-Replay"))
	assert.JSONEq(t, first.Body.String(), retry.Body.String())
	assert.Equal(t, 1, *calls)
}

func TestIdempotency_UnreadableBody(t *testing.T) {
	r, calls := newKeyedEngine(t, func(c *gin.Context, call int) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/things", iotest.ErrReader(errors.New("unexpected EOF")))
	req.Header.Set(middleware.HeaderIdempotencyKey, "key-truncated")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), apperror.CodeValidation)
	assert.Zero(t, *calls)
}
