package api

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/logging"
	"github.com/Domenick1991/skybooking/internal/policy"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	actorKey        = "actor"
	requestIDHeader = "X-Request-ID"
)

// TokenResolver maps a session token to its user.
type TokenResolver interface {
	ResolveToken(ctx context.Context, raw string) (*domain.User, error)
}

// RequestLogger tags each request with an id, puts a request scoped logger in
// the request context and logs the outcome.
func RequestLogger(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		log := base.With(slog.String("request_id", requestID))
		c.Request = c.Request.WithContext(logging.ContextWithLogger(c.Request.Context(), log))

		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= 500 {
			level = slog.LevelError
		}
		log.Log(c.Request.Context(), level, "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}

// Identify resolves the Authorization header into an actor. A missing header
// means an anonymous actor; a header that does not resolve is rejected.
func Identify(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
			raw = strings.TrimSpace(raw[7:])
		}
		if raw == "" {
			c.Set(actorKey, policy.Actor(policy.Anonymous{}))
			c.Next()
			return
		}

		user, err := resolver.ResolveToken(c.Request.Context(), raw)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Set(actorKey, policy.FromUser(user))
		c.Next()
	}
}

func actorFrom(c *gin.Context) policy.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(policy.Actor); ok {
			return a
		}
	}
	return policy.Anonymous{}
}
