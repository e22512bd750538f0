package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"github.com/uis-platform/uisapi/internal/config"
	"github.com/uis-platform/uisapi/internal/handler"
	"github.com/uis-platform/uisapi/internal/metrics"
	"github.com/uis-platform/uisapi/internal/middleware"
	"github.com/uis-platform/uisapi/internal/reqlog"
)

// Deps are the collaborators the server is built from.
type Deps struct {
	Store    handler.Role2FileTypeStore
	Recorder *reqlog.Recorder
	Logger   zerolog.Logger
	// NewRelic is optional.
	NewRelic *newrelic.Application
}

// Server holds the Echo app and dependencies.
type Server struct {
	Echo   *echo.Echo
	Config *config.Config
	Hub    *NotificationHub
	log    zerolog.Logger
}

// New builds the Echo server and registers routes. Middleware runs in order:
// fault barrier, APM, CORS, body limit, interception.
func New(cfg *config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	e.Use(
		middleware.FaultBarrier(deps.Logger),
		middleware.NewRelic(deps.NewRelic),
		echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.Server.CORSAllowedOrigins}),
		echomw.BodyLimit(cfg.Server.BodyLimit),
		middleware.Intercept(middleware.InterceptConfig{
			Recorder:   deps.Recorder,
			ExemptPath: cfg.Log.StreamExemptPath,
			Logger:     deps.Logger,
		}),
	)

	hub := NewNotificationHub(deps.Logger)
	role2FileType := &handler.Role2FileTypeHandler{Store: deps.Store, Events: hub}
	notifications := &handler.NotificationHandler{Hub: hub, Heartbeat: cfg.Notify.Heartbeat}

	api := e.Group("/api/v3")
	api.GET("/getRole2FileType", role2FileType.Get)
	api.GET("/getAllFileTypeByRoleId", role2FileType.ListByRoleGroup)
	api.POST("/createRole2FileTypeByList", role2FileType.CreateByList)
	api.PUT("/updateRole2FileType", role2FileType.Update)
	api.DELETE("/deleteRole2FileType", role2FileType.DeleteByList)
	api.GET("/ftpNotifications", notifications.Stream)

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	return &Server{Echo: e, Config: cfg, Hub: hub, log: deps.Logger}
}

// Start serves until ctx is cancelled or the listener fails. On cancel it
// drains in-flight requests before returning, so the caller may release
// shared resources as soon as Start returns.
func (s *Server) Start(ctx context.Context) error {
	addr := ":" + s.Config.Server.Port
	errc := make(chan error, 1)
	go func() { errc <- s.Echo.Start(addr) }()
	s.log.Info().Str("addr", addr).Msg("server listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), s.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown ends the notification streams and then gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Hub.Close()
	return s.Echo.Shutdown(ctx)
}
