package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/avafields/internal/cache"
	"github.com/vyrodovalexey/avafields/internal/config"
	"github.com/vyrodovalexey/avafields/internal/filter"
	"github.com/vyrodovalexey/avafields/internal/health"
	"github.com/vyrodovalexey/avafields/internal/observability"
)

// ginModeOnce guards gin.SetMode, which is not safe for concurrent use.
var ginModeOnce sync.Once

const cacheCheckTimeout = time.Second

const cacheProbeKey = "avafields:health"

// Server serves the dataset over HTTP.
type Server struct {
	cfg           *config.Config
	engine        *gin.Engine
	httpServer    *http.Server
	listener      net.Listener
	state         atomic.Pointer[State]
	health        *health.Checker
	metrics       *observability.Metrics
	filterMetrics *filter.Metrics
	cache         cache.Cache
	logger        observability.Logger
	version       string
	mu            sync.RWMutex
	running       bool
}

// Option is a functional option for configuring the server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics sets the HTTP metrics. Without it no request metrics are
// recorded and /metrics is not served.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithCache registers a readiness check against the cache backend.
func WithCache(c cache.Cache) Option {
	return func(s *Server) {
		s.cache = c
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// New creates a server serving state.
func New(cfg *config.Config, state *State, opts ...Option) (*Server, error) {
	if state == nil {
		return nil, ErrNoState
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		cfg:           cfg,
		engine:        gin.New(),
		filterMetrics: filter.GetMetrics(),
		logger:        observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = observability.NopLogger()
	}

	s.state.Store(state)
	s.health = health.NewChecker(s.version)
	s.registerChecks()
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	s.engine.Use(recovery(s.logger), requestID(), tracing())
	if s.metrics != nil {
		s.engine.Use(requestMetrics(s.metrics))
	}
	s.engine.Use(accessLog(s.logger))
	if rl := s.cfg.Server.RateLimit; rl != nil && rl.Enabled {
		limiter := rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), rl.Burst)
		s.engine.Use(rateLimit(limiter, s.metrics, s.logger, s.cfg.Metrics.Path))
	}

	s.engine.GET("/health", gin.WrapF(s.health.HealthHandler()))
	s.engine.GET("/ready", gin.WrapF(s.health.ReadinessHandler()))
	s.engine.GET("/live", gin.WrapF(s.health.LivenessHandler()))
	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.engine.GET(s.cfg.Metrics.Path, gin.WrapH(s.metrics.Handler()))
	}

	api := s.engine.Group("/api")
	api.GET("/schemas", s.listSchemas)
	api.GET("/schemas/:name", s.getSchema)
	api.GET("/:resource", s.listObjects)
	api.GET("/:resource/:id", s.getObject)

	s.engine.NoRoute(s.notFound)
}

func (s *Server) registerChecks() {
	s.health.RegisterCheck("schemas", func() health.Check {
		n := s.State().Registry.Len()
		if n == 0 {
			return health.Unhealthy("no schemas loaded")
		}
		return health.Healthy(fmt.Sprintf("%d schemas", n))
	})

	s.health.RegisterCheck("store", func() health.Check {
		st := s.State().Store
		return health.Healthy(fmt.Sprintf("%d resources, %d objects", len(st.Resources()), st.Len()))
	})

	if s.cache == nil {
		return
	}
	s.health.RegisterCheck("cache", func() health.Check {
		ctx, cancel := context.WithTimeout(context.Background(), cacheCheckTimeout)
		defer cancel()

		_, err := s.cache.Exists(ctx, cacheProbeKey)
		switch {
		case err == nil:
			return health.Healthy("")
		case errors.Is(err, cache.ErrCacheDisabled):
			return health.Healthy("disabled")
		default:
			return health.Degraded(err.Error())
		}
	})
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// State returns the served state.
func (s *Server) State() *State {
	return s.state.Load()
}

// SetState replaces the served state. Requests in flight finish with the
// state they started with.
func (s *Server) SetState(state *State) {
	if state == nil {
		return
	}
	previous := s.state.Swap(state)
	s.logger.Info("state replaced",
		observability.String("generation", state.Generation),
		observability.String("previous", previous.Generation),
		observability.Int("schemas", state.Registry.Len()),
		observability.Int("objects", state.Store.Len()),
	)
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}

	addr := s.cfg.Server.ListenAddress()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadTimeout:       s.cfg.Server.ReadTimeout.Duration(),
		ReadHeaderTimeout: s.cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:      s.cfg.Server.WriteTimeout.Duration(),
	}
	s.running = true
	httpServer := s.httpServer
	s.mu.Unlock()

	s.logger.Info("starting HTTP server",
		observability.String("address", ln.Addr().String()),
		observability.Duration("readTimeout", s.cfg.Server.ReadTimeout.Duration()),
		observability.Duration("writeTimeout", s.cfg.Server.WriteTimeout.Duration()),
	)

	err = httpServer.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	s.logger.Info("stopping HTTP server")

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("HTTP server stopped")
	return nil
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the listening address, or an empty string before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
