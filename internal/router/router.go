// Package router assembles the HTTP surface of the attendance mirror.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/veritas-ponto/veritas-api/internal/handler"
	"github.com/veritas-ponto/veritas-api/internal/middleware"
	"github.com/veritas-ponto/veritas-api/internal/service"
	"github.com/veritas-ponto/veritas-api/pkg/config"
	"github.com/veritas-ponto/veritas-api/pkg/logger"
	corsmiddleware "github.com/veritas-ponto/veritas-api/pkg/middleware/cors"
	reqidmiddleware "github.com/veritas-ponto/veritas-api/pkg/middleware/requestid"
)

// Handlers collects everything the router mounts.
type Handlers struct {
	Auth      *handler.AuthHandler
	Users     *handler.UserHandler
	Activity  *handler.ActivityHandler
	Absences  *handler.AbsenceHandler
	Device    *handler.DeviceHandler
	Dashboard *handler.DashboardHandler
	Reports   *handler.ReportHandler
	Settings  *handler.SettingsHandler
	Events    *handler.EventsHandler
}

// New builds the gin engine with all routes mounted. Everything under
// the API prefix except login requires a bearer token.
func New(cfg *config.Config, logr *zap.Logger, auth *service.AuthService, metrics *service.MetricsService, h Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", h.Auth.Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(auth))

	protected.GET("/users", h.Users.List)
	protected.POST("/users", h.Users.Create)
	protected.POST("/users/manual", h.Users.CreateManual)
	protected.GET("/users/:id", h.Users.Get)
	protected.PUT("/users/:id", h.Users.Update)
	protected.DELETE("/users/:id", h.Users.Delete)
	protected.POST("/users/remove-duplicates", h.Users.RemoveDuplicates)

	protected.GET("/activities", h.Activity.List)
	protected.POST("/activities", h.Activity.Create)
	protected.PUT("/activities/:id", h.Activity.Correct)
	protected.DELETE("/activities", h.Activity.Clear)

	protected.GET("/absences", h.Absences.List)
	protected.POST("/absences", h.Absences.Create)
	protected.DELETE("/absences/:id", h.Absences.Delete)
	protected.POST("/absences/initialize", h.Absences.Initialize)

	protected.GET("/device/ports", h.Device.Ports)
	protected.POST("/device/connect", h.Device.Connect)
	protected.POST("/device/disconnect", h.Device.Disconnect)
	protected.GET("/device/status", h.Device.Status)
	protected.POST("/device/buzzer", h.Device.SetBuzzer)
	protected.POST("/device/sync-time", h.Device.SyncTime)
	protected.POST("/device/empty-database", h.Device.EmptyDatabase)

	protected.GET("/dashboard/stats", h.Dashboard.Stats)

	protected.GET("/reports/frequency", h.Reports.Frequency)
	protected.GET("/reports/absences", h.Reports.Absences)

	protected.GET("/settings", h.Settings.Get)
	protected.PUT("/settings", h.Settings.Save)

	protected.GET("/events", h.Events.Stream)

	return r
}
