package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sandeepkv93/trackd/internal/app"
)

// Server exposes the tracker core as a JSON API.
type Server struct {
	app    *app.App
	logger *zap.Logger
	echo   *echo.Echo
	loc    *time.Location
}

func New(a *app.App) (*Server, error) {
	loc, err := a.Config.Location()
	if err != nil {
		return nil, err
	}
	s := &Server{app: a, logger: a.Logger.Named("http"), loc: loc}
	s.setupEcho()
	return s, nil
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(s.requestLogger)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	e.GET("/health", s.handleHealth)

	e.GET("/trackers", s.handleListTrackers)
	e.POST("/trackers", s.handleCreateTracker)
	e.GET("/trackers/:id", s.handleGetTracker)
	e.PUT("/trackers/:id", s.handleUpdateTracker)
	e.DELETE("/trackers/:id", s.handleDeleteTracker)
	e.POST("/trackers/:id/toggle", s.handleToggle)
	e.POST("/trackers/:id/move", s.handleMoveTracker)
	e.GET("/trackers/:id/status", s.handleTrackerStatus)
	e.GET("/trackers/:id/records", s.handleTrackerRecords)

	e.GET("/categories", s.handleListCategories)
	e.POST("/categories", s.handleCreateCategory)
	e.PUT("/categories/:id", s.handleRenameCategory)
	e.DELETE("/categories", s.handleDeleteCategory)

	e.GET("/stats", s.handleStats)
	e.GET("/events", s.handleEvents)

	s.echo = e
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		req := c.Request()
		res := c.Response()
		s.logger.Info("http request",
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", res.Status),
			zap.Int64("size", res.Size),
			zap.Duration("duration", time.Since(start)),
		)
		return err
	}
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
