// Package api exposes the engine's status and signal history over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"trading-signal-engine/internal/database"
	"trading-signal-engine/internal/signal"
)

// RateLimiter provides simple in-memory rate limiting per client IP
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Engine is the surface the API needs from the signal engine.
type Engine interface {
	ScanSymbol(ctx context.Context, symbol string) (*signal.TradeSignal, error)
	Symbols() []string
}

// SignalStore is the persistence surface used by the API. Optional; a
// nil store disables the history endpoints.
type SignalStore interface {
	GetRecentSignals(ctx context.Context, limit int) ([]*database.StoredSignal, error)
	GetAccuracyStats(ctx context.Context) (*database.AccuracyStats, error)
}

// Config holds the HTTP server configuration.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins string
	Debug          bool
}

type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	engine      Engine
	store       SignalStore
	rateLimiter *RateLimiter
	startedAt   time.Time
	logger      zerolog.Logger
}

func NewServer(cfg Config, engine Engine, store SignalStore, logger zerolog.Logger) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{cfg.AllowedOrigins}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:      router,
		engine:      engine,
		store:       store,
		rateLimiter: NewRateLimiter(60, time.Minute),
		startedAt:   time.Now(),
		logger:      logger.With().Str("component", "api").Logger(),
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())

	api.GET("/health", s.handleHealth)
	api.GET("/symbols", s.handleSymbols)
	api.GET("/signals", s.handleSignals)
	api.GET("/stats", s.handleStats)
	api.POST("/scan/:symbol", s.handleScan)
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.rateLimiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// Start runs the server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("API server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"persistence":    s.store != nil,
	})
}

func (s *Server) handleSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": s.engine.Symbols()})
}

func (s *Server) handleSignals(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal persistence is disabled"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer in [1,500]"})
			return
		}
		limit = parsed
	}

	signals, err := s.store.GetRecentSignals(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to fetch signals")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch signals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"signals": signals, "count": len(signals)})
}

func (s *Server) handleStats(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal persistence is disabled"})
		return
	}

	stats, err := s.store.GetAccuracyStats(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to fetch stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleScan(c *gin.Context) {
	symbol := c.Param("symbol")

	sig, err := s.engine.ScanSymbol(c.Request.Context(), symbol)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("On-demand scan failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	if sig == nil {
		c.JSON(http.StatusOK, gin.H{"symbol": symbol, "signal": nil, "message": "no qualifying setup"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "signal": sig})
}
