package api

import (
	"net/http"

	"github.com/Domenick1991/skybooking/internal/service/companies"
	"github.com/gin-gonic/gin"
)

type CompanyHandler struct {
	service companies.CompanyUseCase
}

type companyRequest struct {
	Name *string `json:"name"`
}

func NewCompanyHandler(service companies.CompanyUseCase) *CompanyHandler {
	return &CompanyHandler{service: service}
}

func (h *CompanyHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.GET("/:id", h.get)
	router.POST("", h.create)
	router.PATCH("/:id", h.update)
	router.PUT("/:id", h.update)
	router.DELETE("/:id", h.delete)
}

func (h *CompanyHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context(), queryBool(c, "active"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"companies": presentAll(list, presentCompany)})
}

func (h *CompanyHandler) get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	company, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"company": presentCompany(*company)})
}

func (h *CompanyHandler) create(c *gin.Context) {
	var req companyRequest
	if !bindRooted(c, "company", &req) {
		return
	}
	company, err := h.service.Create(c.Request.Context(), actorFrom(c), companies.CompanyInput{Name: req.Name})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"company": presentCompany(*company)})
}

func (h *CompanyHandler) update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req companyRequest
	if !bindRooted(c, "company", &req) {
		return
	}
	company, err := h.service.Update(c.Request.Context(), actorFrom(c), id, companies.CompanyInput{Name: req.Name})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"company": presentCompany(*company)})
}

func (h *CompanyHandler) delete(c *gin.Context) {
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
