package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	t.Parallel()
	r := NewRateLimiter(time.Hour)
	assert.True(t, r.Allow("offset"))
	assert.False(t, r.Allow("offset"))
	assert.True(t, r.Allow("digital"))
}

// TestRateLimiter_KeyedOnBoundDivision exercises the limiter the way
// handleRun does: checked after JSON binding, keyed on the request body's
// division field, not a query parameter (division is never a query
// parameter on POST /v1/schedule/run).
func TestRateLimiter_KeyedOnBoundDivision(t *testing.T) {
	t.Parallel()
	r := gin.New()
	limiter := NewRateLimiter(time.Hour)
	r.POST("/run", func(c *gin.Context) {
		var req RunRequest
		_ = c.ShouldBindJSON(&req)
		if !limiter.Allow(req.Division) {
			c.Status(http.StatusTooManyRequests)
			return
		}
		c.Status(http.StatusOK)
	})

	body := func() *bytes.Reader { return bytes.NewReader([]byte(`{"division": "offset"}`)) }

	rec1 := httptest.NewRecorder()
	r.ServeHTTP(rec1, httptest.NewRequest(http.MethodPost, "/run", body()))
	assert.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, httptest.NewRequest(http.MethodPost, "/run", body()))
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)

	rec3 := httptest.NewRecorder()
	r.ServeHTTP(rec3, httptest.NewRequest(http.MethodPost, "/run", bytes.NewReader([]byte(`{"division": "digital"}`))))
	assert.Equal(t, http.StatusOK, rec3.Code)
}

func TestAPIKeyAuth_EmptyKeySetAllowsAll(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.GET("/ping", APIKeyAuth(nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth_RejectsMissingOrWrongKey(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.GET("/ping", APIKeyAuth([]string{"secret"}), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-API-Key", "secret")
	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusOK, rec2.Code)
}
