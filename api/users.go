package api

import (
	"net/http"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/service/users"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	service users.UserUseCase
}

type userRequest struct {
	FirstName *string      `json:"first_name"`
	LastName  *string      `json:"last_name"`
	Email     *string      `json:"email"`
	Password  *string      `json:"password"`
	Role      *domain.Role `json:"role"`
}

func (r userRequest) input() users.UserInput {
	return users.UserInput{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Password:  r.Password,
		Role:      r.Role,
	}
}

func NewUserHandler(service users.UserUseCase) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.GET("/:id", h.get)
	router.POST("", h.create)
	router.PATCH("/:id", h.update)
	router.PUT("/:id", h.update)
	router.DELETE("/:id", h.delete)
}

func (h *UserHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": presentAll(list, presentUser)})
}

func (h *UserHandler) get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	u, err := h.service.GetByID(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": presentUser(*u)})
}

func (h *UserHandler) create(c *gin.Context) {
	var req userRequest
	if !bindRooted(c, "user", &req) {
		return
	}
	u, err := h.service.Create(c.Request.Context(), actorFrom(c), req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": presentUser(*u)})
}

func (h *UserHandler) update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req userRequest
	if !bindRooted(c, "user", &req) {
		return
	}
	u, err := h.service.Update(c.Request.Context(), actorFrom(c), id, req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": presentUser(*u)})
}

func (h *UserHandler) delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
