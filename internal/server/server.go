// Package server exposes a bridge client over HTTP with gin.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tayjaybabee/jet-bridge/internal/metrics"
	"github.com/tayjaybabee/jet-bridge/internal/model"
	"github.com/tayjaybabee/jet-bridge/internal/registry"
	"github.com/tayjaybabee/jet-bridge/internal/siblings"
	"github.com/tayjaybabee/jet-bridge/pkg/jetbridge"
)

// Headers carrying the project and token parts of a connection key.
const (
	HeaderProject = "X-Jet-Project"
	HeaderToken   = "X-Jet-Token"
)

// Service is the bridge behavior the HTTP façade needs.
type Service interface {
	Status() registry.Snapshot
	Tables(key registry.Key) ([]*model.Table, error)
	Table(key registry.Key, name string) (*model.Table, error)
	Records(ctx context.Context, key registry.Key, table string, params url.Values) (*jetbridge.Page, error)
	Siblings(ctx context.Context, key registry.Key, table string, params url.Values, pk string) (siblings.Siblings, error)
	StartRefresh(ctx context.Context, key registry.Key) (*jetbridge.Reflection, error)
	Metrics() *metrics.Metrics
}

// Options configures the HTTP server.
type Options struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// Gatherer serves /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// Server is the HTTP façade of one Service.
type Server struct {
	svc    Service
	http   *http.Server
	logger *slog.Logger
}

// New builds the router and the underlying http.Server.
func New(svc Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, logger: logger}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger(), svc.Metrics().Middleware())
	s.routes(router, opts.Gatherer)

	s.http = &http.Server{
		Addr:         opts.Addr,
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) routes(router *gin.Engine, gatherer prometheus.Gatherer) {
	router.GET("/status", s.status)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	conn := router.Group("/api/connections/:name")
	{
		conn.POST("/refresh", s.refresh)
		conn.GET("/tables", s.tables)
		conn.GET("/tables/:table", s.table)
		conn.GET("/tables/:table/records", s.records)
		conn.GET("/tables/:table/records/:pk/siblings", s.siblings)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// key reads the connection key from the path and headers.
func key(c *gin.Context) registry.Key {
	return registry.Key{
		Name:    c.Param("name"),
		Project: c.GetHeader(HeaderProject),
		Token:   c.GetHeader(HeaderToken),
	}
}

func (s *Server) status(c *gin.Context) {
	Success(c, http.StatusOK, s.svc.Status(), "")
}

func (s *Server) refresh(c *gin.Context) {
	// The reflection outlives the request.
	r, err := s.svc.StartRefresh(context.WithoutCancel(c.Request.Context()), key(c))
	if err != nil {
		fail(c, err, "Refresh could not be started")
		return
	}
	Success(c, http.StatusAccepted, gin.H{"connection": r.Key().Name}, "Refresh started")
}

func (s *Server) tables(c *gin.Context) {
	tables, err := s.svc.Tables(key(c))
	if err != nil {
		fail(c, err, "Tables could not be listed")
		return
	}
	Success(c, http.StatusOK, tables, "")
}

func (s *Server) table(c *gin.Context) {
	t, err := s.svc.Table(key(c), c.Param("table"))
	if err != nil {
		fail(c, err, "Table not found")
		return
	}
	Success(c, http.StatusOK, t, "")
}

func (s *Server) records(c *gin.Context) {
	page, err := s.svc.Records(c.Request.Context(), key(c), c.Param("table"), c.Request.URL.Query())
	if err != nil {
		fail(c, err, "Records could not be loaded")
		return
	}
	Success(c, http.StatusOK, page, "")
}

func (s *Server) siblings(c *gin.Context) {
	sib, err := s.svc.Siblings(c.Request.Context(), key(c), c.Param("table"), c.Request.URL.Query(), c.Param("pk"))
	if err != nil {
		fail(c, err, "Siblings could not be loaded")
		return
	}
	Success(c, http.StatusOK, sib, "")
}
