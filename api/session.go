package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/skybooking/internal/service/users"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	service users.SessionUseCase
	limiter *IPRateLimiter
}

type sessionRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      userResponse `json:"user"`
}

// NewSessionHandler throttles logins per client IP when limiter is set.
func NewSessionHandler(service users.SessionUseCase, limiter *IPRateLimiter) *SessionHandler {
	return &SessionHandler{service: service, limiter: limiter}
}

func (h *SessionHandler) Register(router *gin.RouterGroup) {
	create := []gin.HandlerFunc{h.create}
	if h.limiter != nil {
		create = append([]gin.HandlerFunc{h.limiter.Middleware()}, create...)
	}
	router.POST("", create...)
	router.DELETE("", h.delete)
}

func (h *SessionHandler) create(c *gin.Context) {
	var req sessionRequest
	if !bindRooted(c, "session", &req) {
		return
	}
	session, err := h.service.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": sessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      presentUser(session.User),
	}})
}

func (h *SessionHandler) delete(c *gin.Context) {
	if err := h.service.Logout(c.Request.Context(), actorFrom(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
