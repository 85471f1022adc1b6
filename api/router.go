package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Users     *UserHandler
	Companies *CompanyHandler
	Flights   *FlightHandler
	Bookings  *BookingHandler
	Session   *SessionHandler
}

// NewRouter mounts every resource under /api behind request logging and
// token identification.
func NewRouter(log *slog.Logger, resolver TokenResolver, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"errors": "Record not found"})
	})

	api := router.Group("/api", Identify(resolver))
	h.Users.Register(api.Group("/users"))
	h.Companies.Register(api.Group("/companies"))
	h.Flights.Register(api.Group("/flights"))
	h.Bookings.Register(api.Group("/bookings"))
	h.Session.Register(api.Group("/session"))
	return router
}
