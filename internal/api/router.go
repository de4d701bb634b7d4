package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"raybox-panel/internal/api/handlers"
	"raybox-panel/internal/api/middleware"
	"raybox-panel/internal/config"
	"raybox-panel/internal/events"
	"raybox-panel/internal/job"
	"raybox-panel/internal/monitor"
	"raybox-panel/internal/settings"
)

type Deps struct {
	Config   *config.Config
	Settings *settings.Store
	Jobs     *job.Store
	Monitor  *monitor.Monitor
	Hub      *events.Hub
}

func NewRouter(deps Deps) (*gin.Engine, error) {
	auth, err := middleware.NewAuthMiddleware(deps.Settings)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	v1 := r.Group("/api/v1")

	v1.POST("/auth/setup", auth.SetupHandler)
	v1.POST("/auth/login", auth.LoginHandler)
	v1.POST("/auth/logout", auth.LogoutHandler)
	v1.GET("/auth/status", auth.StatusHandler)

	protected := v1.Group("")
	protected.Use(auth.RequireAuth())
	protected.POST("/auth/password", auth.ChangePasswordHandler)

	handlers.NewSettingsHandler(deps.Settings).RegisterRoutes(protected)
	handlers.NewDeviceHandler(deps.Settings, deps.Config.Device).RegisterRoutes(protected)
	handlers.NewTaskHandler(deps.Jobs, deps.Settings, deps.Config.Device, deps.Hub).RegisterRoutes(protected)
	handlers.NewJobHandler(deps.Jobs).RegisterRoutes(protected)
	handlers.NewMonitorHandler(deps.Monitor, deps.Settings, deps.Config.Device, deps.Hub).RegisterRoutes(protected)
	handlers.NewExportHandler(deps.Jobs).RegisterRoutes(protected)
	handlers.NewWSHandler(deps.Hub).RegisterRoutes(protected)

	return r, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}
