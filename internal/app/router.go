package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"hail/internal/handler"
	"hail/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	BookingHandler *handler.BookingHandler
	DriverHandler  *handler.DriverHandler
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware(5, 10))

	// Add New Relic middleware if enabled; error reporting rides on the
	// transaction nrgin opens.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.NewRelicErrors())
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Booking routes.
		bookings := v1.Group("/bookings")
		{
			bookings.POST("", deps.BookingHandler.CreateBooking)
			bookings.GET("/:id", deps.BookingHandler.GetBooking)
			bookings.POST("/:id/accept", deps.BookingHandler.AcceptBooking)
			bookings.POST("/:id/reject", deps.BookingHandler.RejectBooking)
			bookings.POST("/:id/offers", deps.BookingHandler.SubmitOffer)
			bookings.POST("/:id/negotiation", deps.BookingHandler.ProposeFare)
			bookings.POST("/:id/negotiation/respond", deps.BookingHandler.RespondFare)
			bookings.POST("/:id/raise-fare", deps.BookingHandler.RaiseFare)
			bookings.POST("/:id/cancel", deps.BookingHandler.CancelBooking)
			bookings.POST("/:id/start", deps.BookingHandler.StartBooking)
			bookings.POST("/:id/complete", deps.BookingHandler.CompleteBooking)
			bookings.GET("/:id/receipt", deps.BookingHandler.GetReceipt)
			bookings.POST("/:id/survey/confirm", deps.BookingHandler.ConfirmSurvey)
		}

		// Driver routes.
		drivers := v1.Group("/drivers")
		{
			drivers.POST("/register", deps.DriverHandler.Register)
			drivers.POST("/:id/vehicles", deps.DriverHandler.RegisterVehicle)
			drivers.POST("/:id/location", deps.DriverHandler.UpdateLocation)
			drivers.POST("/:id/online", deps.DriverHandler.GoOnline)
			drivers.POST("/:id/offline", deps.DriverHandler.GoOffline)
		}
	}

	return router
}
