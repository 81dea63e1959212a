// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ridecore/internal/http/handlers"
	"ridecore/internal/http/middleware"
	"ridecore/internal/infra"
	"ridecore/internal/modules/booking"
	"ridecore/internal/modules/driver"
	"ridecore/internal/modules/passenger"
	"ridecore/internal/modules/ranking"
)

type Deps struct {
	Bookings   *booking.Service
	Drivers    *driver.Service
	Passengers *passenger.Service
	Ranking    *ranking.Service
	// Routes may be nil when no Directions key is configured.
	Routes handlers.Router
	// Verifier may be nil to run without authentication.
	Verifier infra.TokenVerifier
	Log      *slog.Logger
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	mapsHandler := handlers.NewMapsHandler(deps.Routes)
	api.POST("/maps/directions", mapsHandler.Directions)

	passengerHandler := handlers.NewPassengerHandler(deps.Passengers, deps.Ranking)
	api.POST("/passengers", passengerHandler.Register)
	api.PATCH("/passengers/:id", passengerHandler.Update)
	api.PUT("/passengers/:id/location", passengerHandler.UpdateLocation)
	api.POST("/passengers/nearby-drivers", passengerHandler.NearbyDrivers)

	bookingHandler := handlers.NewBookingHandler(deps.Bookings)
	api.POST("/bookings", bookingHandler.Create)
	api.GET("/bookings/:id", bookingHandler.Get)
	api.GET("/bookings/:id/events", bookingHandler.Events)
	api.POST("/bookings/:id/confirm", bookingHandler.Confirm)
	api.POST("/bookings/:id/cancel", bookingHandler.Cancel)

	driverHandler := handlers.NewDriverHandler(deps.Drivers, deps.Bookings)
	drivers := api.Group("/drivers", middleware.RequireRole("driver"))
	drivers.POST("", driverHandler.Register)
	drivers.PUT("/:id/availability", driverHandler.SetAvailability)
	drivers.PUT("/:id/location", driverHandler.UpdateLocation)
	drivers.GET("/:id/status", driverHandler.Status)
	drivers.GET("/:id/bookings", driverHandler.Bookings)
	drivers.POST("/bookings/:id/accept", driverHandler.Accept)
	drivers.POST("/bookings/:id/start", driverHandler.Start)
	drivers.POST("/bookings/:id/complete", driverHandler.Complete)
	drivers.POST("/bookings/:id/cancel", driverHandler.Cancel)

	return r
}
