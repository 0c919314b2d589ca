package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pixeloria/internal/config"
)

// CORSMiddleware CORS 中间件，来源/方法/头从配置读取
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	cc := cfg.Security.CORS
	if !cc.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	origins := strings.Join(cc.AllowedOrigins, ", ")
	if origins == "" {
		origins = "*"
	}
	methods := strings.Join(cc.AllowedMethods, ", ")
	if methods == "" {
		methods = "GET, POST, PUT, DELETE, OPTIONS"
	}
	headers := strings.Join(cc.AllowedHeaders, ", ")
	if headers == "" {
		headers = "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization"
	}

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origins)
		c.Header("Access-Control-Allow-Methods", methods)
		c.Header("Access-Control-Allow-Headers", headers)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
