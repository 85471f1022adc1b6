package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/skybooking/internal/repository"
	"github.com/Domenick1991/skybooking/internal/service/flights"
	"github.com/gin-gonic/gin"
)

type FlightHandler struct {
	service flights.FlightUseCase
}

type flightRequest struct {
	Name      *string    `json:"name"`
	NoOfSeats *int       `json:"no_of_seats"`
	BasePrice *int64     `json:"base_price"`
	DepartsAt *time.Time `json:"departs_at"`
	ArrivesAt *time.Time `json:"arrives_at"`
	CompanyID *int64     `json:"company_id"`
}

func (r flightRequest) input() flights.FlightInput {
	return flights.FlightInput{
		CompanyID: r.CompanyID,
		Name:      r.Name,
		Capacity:  r.NoOfSeats,
		BaseFare:  r.BasePrice,
		DepartsAt: r.DepartsAt,
		ArrivesAt: r.ArrivesAt,
	}
}

func NewFlightHandler(service flights.FlightUseCase) *FlightHandler {
	return &FlightHandler{service: service}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.GET("/:id", h.get)
	router.POST("", h.create)
	router.PATCH("/:id", h.update)
	router.PUT("/:id", h.update)
	router.DELETE("/:id", h.delete)
}

// list accepts company_id, name_cont, departs_at_eq and
// no_of_available_seats_gteq, combined with AND.
func (h *FlightHandler) list(c *gin.Context) {
	var filter repository.FlightFilter
	var ok bool
	if filter.CompanyID, ok = queryInt64(c, "company_id"); !ok {
		return
	}
	filter.NameContains = c.Query("name_cont")
	if filter.DepartsAt, ok = queryTime(c, "departs_at_eq"); !ok {
		return
	}
	if raw := c.Query("no_of_available_seats_gteq"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "no_of_available_seats_gteq", "is not a number")
			return
		}
		filter.MinAvailableSeats = &n
	}

	list, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flights": presentAll(list, presentFlight)})
}

func (h *FlightHandler) get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	flight, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flight": presentFlight(*flight)})
}

func (h *FlightHandler) create(c *gin.Context) {
	var req flightRequest
	if !bindRooted(c, "flight", &req) {
		return
	}
	flight, err := h.service.Create(c.Request.Context(), actorFrom(c), req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"flight": presentFlight(*flight)})
}

func (h *FlightHandler) update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req flightRequest
	if !bindRooted(c, "flight", &req) {
		return
	}
	flight, err := h.service.Update(c.Request.Context(), actorFrom(c), id, req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flight": presentFlight(*flight)})
}

func (h *FlightHandler) delete(c *gin.Context) {
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
