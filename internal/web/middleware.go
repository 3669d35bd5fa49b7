package web

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/floroz/commerce/pkg/auth"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	realIPKey       = "real_ip"
)

// RequestID reuses an incoming X-Request-ID or generates one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RealIP stores the client address, preferring the left-most X-Forwarded-For entry
func RealIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if ip := net.ParseIP(first); ip != nil {
				c.Set(realIPKey, ip.String())
				c.Next()
				return
			}
		}
		c.Set(realIPKey, c.ClientIP())
		c.Next()
	}
}

// RequestLogger writes one access log line per request
func RequestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"request_id": c.GetString(requestIDKey),
			"ip":         c.GetString(realIPKey),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request completed")
		}
	}
}

// loadSession resolves the session cookie into claims on the request context.
// Invalid or expired sessions are cleared and the request continues anonymously.
func (s *Server) loadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(sessionCookie)
		if err != nil || token == "" {
			c.Next()
			return
		}

		claims, err := s.authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			s.logger.WithError(err).WithField("request_id", c.GetString(requestIDKey)).Debug("discarding session cookie")
			s.clearSessionCookie(c)
			c.Next()
			return
		}

		c.Request = c.Request.WithContext(auth.WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

// requireUser sends anonymous requests to the login page
func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := auth.GetUserID(c.Request.Context()); !ok {
			c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.Next()
	}
}

// rateLimit counts mutating requests per user, or per address for anonymous
// clients. Limiter errors let the request through.
func (s *Server) rateLimit() gin.HandlerFunc {
	if s.limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		key := "ip:" + c.GetString(realIPKey)
		if id, ok := auth.GetUserID(c.Request.Context()); ok {
			key = "user:" + id.String()
		}

		res, err := s.limiter.Allow(c.Request.Context(), key)
		if err != nil {
			s.logger.WithError(err).Warn("rate limiter unavailable")
			c.Next()
			return
		}

		resetSec := int(res.ResetIn.Seconds())
		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(resetSec))

		if !res.Allowed {
			if resetSec > 0 {
				c.Header("Retry-After", strconv.Itoa(resetSec))
			}
			s.renderError(c, http.StatusTooManyRequests, "Too many requests", "Please slow down and try again shortly.")
			c.Abort()
			return
		}
		c.Next()
	}
}
