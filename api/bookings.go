package api

import (
	"net/http"

	"github.com/Domenick1991/skybooking/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type bookingRequest struct {
	NoOfSeats *int   `json:"no_of_seats"`
	SeatPrice *int64 `json:"seat_price"`
	FlightID  *int64 `json:"flight_id"`
	UserID    *int64 `json:"user_id"`
}

func (r bookingRequest) input() booking.BookingInput {
	return booking.BookingInput{
		FlightID:  r.FlightID,
		UserID:    r.UserID,
		Seats:     r.NoOfSeats,
		SeatPrice: r.SeatPrice,
	}
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.GET("/:id", h.get)
	router.POST("", h.create)
	router.PATCH("/:id", h.update)
	router.PUT("/:id", h.update)
	router.DELETE("/:id", h.delete)
}

func (h *BookingHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context(), actorFrom(c), queryBool(c, "active"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": presentAll(list, presentBooking)})
}

func (h *BookingHandler) get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := h.service.GetByID(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": presentBooking(*b)})
}

func (h *BookingHandler) create(c *gin.Context) {
	var req bookingRequest
	if !bindRooted(c, "booking", &req) {
		return
	}
	b, err := h.service.Create(c.Request.Context(), actorFrom(c), req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"booking": presentBooking(*b)})
}

func (h *BookingHandler) update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req bookingRequest
	if !bindRooted(c, "booking", &req) {
		return
	}
	b, err := h.service.Update(c.Request.Context(), actorFrom(c), id, req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": presentBooking(*b)})
}

func (h *BookingHandler) delete(c *gin.Context) {
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
