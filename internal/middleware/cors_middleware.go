package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CORSPolicy lists the browser origins allowed to call the API. "*" allows
// any origin.
type CORSPolicy struct {
	Origins []string
	Methods []string
	Headers []string
	MaxAge  time.Duration
}

// DefaultCORSPolicy covers the workout API: JSON commands and the event
// stream, which browsers resume with Last-Event-ID.
func DefaultCORSPolicy(origins []string) CORSPolicy {
	return CORSPolicy{
		Origins: origins,
		Methods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		Headers: []string{"Authorization", "Content-Type", "Last-Event-ID"},
		MaxAge:  24 * time.Hour,
	}
}

func CORS(policy CORSPolicy) gin.HandlerFunc {
	origins := make([]string, 0, len(policy.Origins))
	for _, origin := range policy.Origins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	anyOrigin := slices.Contains(origins, "*")
	methods := strings.Join(policy.Methods, ",")
	headers := strings.Join(policy.Headers, ",")
	maxAge := strconv.Itoa(int(policy.MaxAge / time.Second))

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case origin == "":
		case anyOrigin:
			c.Header("Access-Control-Allow-Origin", "*")
		case slices.Contains(origins, origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}

		if c.Request.Method != http.MethodOptions || c.GetHeader("Access-Control-Request-Method") == "" {
			c.Next()
			return
		}
		c.Header("Access-Control-Allow-Methods", methods)
		c.Header("Access-Control-Allow-Headers", headers)
		c.Header("Access-Control-Max-Age", maxAge)
		c.AbortWithStatus(http.StatusNoContent)
	}
}
