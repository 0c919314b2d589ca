package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"pixeloria/internal/config"
)

func newLimitedRouter(rpm, burst int, enabled bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Security: config.SecurityConfig{
			RateLimiting: config.RateLimitingConfig{
				Enabled:           enabled,
				RequestsPerMinute: rpm,
				Burst:             burst,
			},
		},
	}
	router := gin.New()
	router.Use(RateLimitMiddleware(cfg))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	router := newLimitedRouter(1, 1, false)

	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/test", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimitMiddleware_BurstThenReject(t *testing.T) {
	router := newLimitedRouter(60, 3, true)

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusOK, codes[2])
	assert.Equal(t, http.StatusTooManyRequests, codes[3])
	assert.Equal(t, http.StatusTooManyRequests, codes[4])
}

func TestRateLimitMiddleware_PerIPIsolation(t *testing.T) {
	router := newLimitedRouter(60, 1, true)

	first := httptest.NewRecorder()
	req1, _ := http.NewRequest("GET", "/test", nil)
	req1.RemoteAddr = "10.0.0.1:1234"
	router.ServeHTTP(first, req1)
	assert.Equal(t, http.StatusOK, first.Code)

	blocked := httptest.NewRecorder()
	req2, _ := http.NewRequest("GET", "/test", nil)
	req2.RemoteAddr = "10.0.0.1:1234"
	router.ServeHTTP(blocked, req2)
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)

	// 另一个 IP 不受影响
	other := httptest.NewRecorder()
	req3, _ := http.NewRequest("GET", "/test", nil)
	req3.RemoteAddr = "10.0.0.2:1234"
	router.ServeHTTP(other, req3)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.GetDefaultConfig()

	router := gin.New()
	router.Use(CORSMiddleware(cfg))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("OPTIONS", "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.GetDefaultConfig()
	cfg.Security.CORS.Enabled = false

	router := gin.New()
	router.Use(CORSMiddleware(cfg))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
