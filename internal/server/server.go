package server

import (
	"context"
	"errors"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/lookingglass/internal/agents"
	"github.com/danmuck/lookingglass/internal/auth"
	"github.com/danmuck/lookingglass/internal/diagnostics"
	"github.com/danmuck/lookingglass/internal/observability"
	"github.com/danmuck/lookingglass/internal/observations"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	ServiceName  = "looking-glass"
	maxBodyBytes = 64 << 10

	shutdownTimeout = 5 * time.Second
)

// Options wires a panel server to its collaborators. Nil stores and a nil
// invoker are replaced with fresh defaults.
type Options struct {
	ID             string
	Addr           string
	CorsOrigins    []string
	TrustedProxies []string
	FrontendDir    string
	AdminPassword  string
	AgentImage     string

	Invoker      *diagnostics.Invoker
	Agents       *agents.Registry
	Observations *observations.Store
	Logger       *zerolog.Logger
}

// Server is the looking-glass HTTP panel.
type Server struct {
	ID       string `json:"id"`
	Addr     string `json:"addr"`
	Appeared time.Time

	invoker      *diagnostics.Invoker
	agents       *agents.Registry
	observations *observations.Store
	admin        auth.Validator
	agentImage   string
	frontendDir  string
	proxies      []netip.Prefix
	logger       zerolog.Logger

	router     *gin.Engine
	routesOnce sync.Once
}

// Appear builds the router and middleware stack; routes are registered by
// RegisterRoutes or Serve.
func Appear(opts Options) *Server {
	observability.RegisterMetrics()
	if opts.ID == "" {
		opts.ID = ServiceName
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.Invoker == nil {
		opts.Invoker = diagnostics.NewInvoker(nil, diagnostics.WithLogger(logger))
	}
	if opts.Agents == nil {
		opts.Agents = agents.NewRegistry()
	}
	if opts.Observations == nil {
		opts.Observations = observations.NewStore()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestID())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware(opts.ID))
	r.Use(cors.New(corsConfig(opts.CorsOrigins)))
	r.Use(limitBody(maxBodyBytes))
	proxies := parseProxies(opts.TrustedProxies)
	if err := r.SetTrustedProxies(normalizeProxies(opts.TrustedProxies)); err != nil {
		logger.Warn().Err(err).Msg("invalid trusted proxies; trusting none")
		_ = r.SetTrustedProxies(nil)
		proxies = nil
	}

	return &Server{
		ID:           opts.ID,
		Addr:         opts.Addr,
		Appeared:     time.Now(),
		invoker:      opts.Invoker,
		agents:       opts.Agents,
		observations: opts.Observations,
		admin:        auth.SharedSecret{Secret: opts.AdminPassword},
		agentImage:   opts.AgentImage,
		frontendDir:  strings.TrimSpace(opts.FrontendDir),
		proxies:      proxies,
		logger:       logger,
		router:       r,
	}
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Serve registers routes and listens on Addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.RegisterRoutes()
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info().Str("id", s.ID).Str("addr", s.Addr).Msg("panel listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Str("id", s.ID).Msg("panel stopped")
	return nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", adminHeader, observability.RequestIDHeader},
		ExposeHeaders: []string{observability.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	cleaned := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
		if origin != "" {
			cleaned = append(cleaned, origin)
		}
	}
	if len(cleaned) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = cleaned
	return cfg
}

func normalizeProxies(proxies []string) []string {
	if len(proxies) == 0 {
		return nil
	}
	return proxies
}

// parseProxies mirrors gin's trusted proxy list as prefixes so handlers can
// tell whether the direct peer may set forwarding headers.
func parseProxies(proxies []string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(proxies))
	for _, raw := range proxies {
		raw = strings.TrimSpace(raw)
		if prefix, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(raw); err == nil {
			addr = addr.Unmap()
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return out
}

func (s *Server) fromTrustedProxy(c *gin.Context) bool {
	peer, err := netip.ParseAddr(c.RemoteIP())
	if err != nil {
		return false
	}
	peer = peer.Unmap()
	for _, prefix := range s.proxies {
		if prefix.Contains(peer) {
			return true
		}
	}
	return false
}

func limitBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
