// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"unipool/internal/http/handlers"
	"unipool/internal/http/middleware"
	"unipool/internal/modules/matching"
	"unipool/internal/modules/trip"
)

func NewRouter(tripService *trip.Service, matchService *matching.Service, log *logrus.Logger) http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logging(log), middleware.Metrics())

	tripHandler := handlers.NewTripHandler(tripService)
	r.POST("/api/trips", tripHandler.Create)
	r.GET("/api/trips/:id", tripHandler.Get)
	r.POST("/api/trips/:id/start", tripHandler.Start)
	r.POST("/api/trips/:id/depart", tripHandler.Depart)
	r.POST("/api/trips/:id/cancel", tripHandler.Cancel)
	r.GET("/api/trips/:id/current-stop", tripHandler.CurrentStop)
	r.POST("/api/trips/:id/advance", tripHandler.Advance)
	r.GET("/api/trips/:id/requests", tripHandler.ListRequests)

	requestHandler := handlers.NewRequestHandler(tripService)
	r.POST("/api/trips/:id/requests", requestHandler.Create)
	r.GET("/api/requests/:id", requestHandler.Get)
	r.POST("/api/requests/:id/accept", requestHandler.Accept)
	r.POST("/api/requests/:id/reject", requestHandler.Reject)
	r.POST("/api/requests/:id/cancel", requestHandler.Cancel)
	r.POST("/api/requests/:id/confirm-pickup", requestHandler.ConfirmPickup)

	matchHandler := handlers.NewMatchHandler(matchService)
	r.POST("/api/matches", matchHandler.Find)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
