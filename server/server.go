// Package server exposes the dashboard pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ytmonitor/aggregate"
	"ytmonitor/internal/metrics"
	"ytmonitor/storage"
	"ytmonitor/youtube"
)

// Aggregator produces and invalidates aggregation results.
type Aggregator interface {
	Aggregate(ctx context.Context, req aggregate.Request) (*aggregate.Result, error)
	Invalidate(ctx context.Context) error
}

// ThumbnailSource fetches thumbnail images.
type ThumbnailSource interface {
	Allowed(rawURL string) bool
	Fetch(ctx context.Context, rawURL string) (*youtube.Thumbnail, error)
}

// Pinger is a dependency checked by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of a Server.
type Deps struct {
	Store      storage.ConfigStore
	Aggregator Aggregator
	Thumbnails ThumbnailSource
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
	// Gatherer is served at /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// APIToken, when set, is required in the X-API-Key header on /api routes.
	APIToken string
	// DefaultMaxResults applies when a request names no limit.
	DefaultMaxResults int
	// Checks are pinged by /healthz, keyed by the name reported.
	Checks map[string]Pinger
}

// Server is the HTTP surface.
type Server struct {
	deps   Deps
	logger zerolog.Logger
	engine *gin.Engine
}

// New builds the server and its routes.
func New(deps Deps) *Server {
	if deps.DefaultMaxResults <= 0 {
		deps.DefaultMaxResults = 10
	}
	s := &Server{
		deps:   deps,
		logger: deps.Logger.With().Str("component", "server").Logger(),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(requestID(), s.requestLogger(), gin.Recovery())
	s.routes(r)
	s.engine = r
	return s
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/healthz", s.health)
	if s.deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	if s.deps.APIToken != "" {
		api.Use(authMiddleware(s.deps.APIToken))
	}
	{
		api.GET("/config", s.getConfig)
		api.PUT("/config", s.putConfig)
		api.GET("/videos", s.listVideos)
		api.POST("/refresh", s.refresh)
		api.GET("/videos/:id/play", s.play)
		api.GET("/thumbnail", s.thumbnail)
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
