package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORSConfig controls which dashboard origins may call the API.
type CORSConfig struct {
	AllowedOrigins  []string
	AllowAllOrigins bool
}

// resolve returns the Access-Control-Allow-Origin value for a request origin,
// or false when the origin is not allowed.
func (cfg CORSConfig) resolve(origin string) (string, bool) {
	if cfg.AllowAllOrigins {
		return "*", true
	}
	if len(cfg.AllowedOrigins) == 0 {
		return origin, true
	}
	for _, allowed := range cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return origin, true
		}
	}
	return "", false
}

// CORS handles cross-origin requests from the review dashboard, including
// preflight. Requests from disallowed origins pass through without CORS
// headers so the browser blocks them.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, ok := cfg.resolve(c.Request.Header.Get("Origin"))
		if !ok {
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", allowed)
		if allowed == "*" {
			// Wildcard origins cannot be combined with credentials.
			h.Set("Access-Control-Allow-Credentials", "false")
		} else {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		h.Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Expose-Headers", "Content-Length, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
