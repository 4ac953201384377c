package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/quailsoft/transq/internal/auth"
	"github.com/quailsoft/transq/internal/common"
)

const (
	HeaderRequestID = "X-Request-ID"
	ctxClientID     = "client_id"
)

// RequestID tags every request, honoring a caller-supplied id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(HeaderRequestID, id)
		c.Next()
	}
}

// Recovery converts panics into 500 envelopes instead of dropped
// connections.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("panic recovered path=%s err=%v", c.FullPath(), r)
				common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
			}
		}()
		c.Next()
	}
}

// AuthRequired accepts a Bearer JWT signed with secret and stores the
// client id for handlers.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			common.Fail(c, http.StatusUnauthorized, 40100, "missing bearer token")
			return
		}
		claims, err := auth.ParseJWT(strings.TrimPrefix(header, "Bearer "), secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40101, "invalid token")
			return
		}
		c.Set(ctxClientID, claims.ClientID)
		c.Next()
	}
}

// ClientID returns the authenticated client id, if any.
func ClientID(c *gin.Context) string {
	v, _ := c.Get(ctxClientID)
	s, _ := v.(string)
	return s
}

// Throttle bounds the inbound request rate for the whole process. This
// protects the API surface; the engine's own limiter governs outbound
// calls separately.
func Throttle(rps float64, burst int) gin.HandlerFunc {
	lim := rate.NewLimiter(rate.Limit(rps), burst)
	return func(c *gin.Context) {
		if !lim.Allow() {
			common.Fail(c, http.StatusTooManyRequests, 42900, "too many requests")
			return
		}
		c.Next()
	}
}
