// Package server exposes the claim pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/metrics"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/pipeline"
	"github.com/ppiankov/claimcheck/internal/tracing"
)

// Service is the pipeline surface the API needs
type Service interface {
	Run(ctx context.Context, claim string) (*pipeline.Result, error)
	Decompose(ctx context.Context, claim string) ([]model.Subclaim, error)
}

// Server wires the gin engine to the pipeline
type Server struct {
	cfg      model.ServerConfig
	svc      Service
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	engine   *gin.Engine
	http     *http.Server
	log      *slog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithMetrics records request metrics and serves gatherer on /metrics
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// New builds the server and its routes
func New(cfg model.ServerConfig, svc Service, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		svc:      svc,
		gatherer: prometheus.DefaultGatherer,
		log:      logging.Named("server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine = s.routes()
	s.http = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(tracing.ServiceName),
		requestLogger(s.log),
		s.observe(),
		cors(s.cfg.AllowedOrigins),
	)

	router.GET("/health", handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/", timeout(s.cfg.RequestTimeout))
	{
		api.POST("/process-claim", s.handleProcessClaim)
		api.POST("/generate_subclaims", s.handleGenerateSubclaims)
	}

	if s.cfg.StaticDir != "" {
		router.Static("/static", s.cfg.StaticDir)
		index := filepath.Join(s.cfg.StaticDir, "index.html")
		router.GET("/", func(c *gin.Context) { c.File(index) })
	}

	return router
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.log.Info("listening", "address", s.cfg.Address)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down")
	return s.http.Shutdown(ctx)
}
