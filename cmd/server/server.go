package main

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ZanzyTHEbar/cultural-bias-shield/docs"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/analysis"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/errors"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/middleware"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/monitoring"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/oracle"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/ratelimit"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/security"
)

// maxBodyBytes bounds request bodies seen by the security monitor
const maxBodyBytes = 1 << 20

const version = "1.0.0"

// Server holds the HTTP layer's dependencies
type Server struct {
	engine  *analysis.Engine
	guard   *oracle.Guard // nil when the oracle is disabled
	limiter *ratelimit.RateLimiter
	metrics *monitoring.Metrics
	logger  *monitoring.Logger
	policy  security.InputPolicy

	corsOrigins       []string
	enableHSTS        bool
	enableCompression bool
}

// ServerOptions configures NewServer
type ServerOptions struct {
	Engine            *analysis.Engine
	Guard             *oracle.Guard
	Limiter           *ratelimit.RateLimiter
	Metrics           *monitoring.Metrics
	Logger            *monitoring.Logger
	Policy            security.InputPolicy
	CORSOrigins       []string
	EnableHSTS        bool
	EnableCompression bool
}

// NewServer creates the HTTP server state
func NewServer(opts ServerOptions) *Server {
	if opts.Policy == (security.InputPolicy{}) {
		opts.Policy = security.DefaultInputPolicy()
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{
		engine:            opts.Engine,
		guard:             opts.Guard,
		limiter:           opts.Limiter,
		metrics:           opts.Metrics,
		logger:            opts.Logger,
		policy:            opts.Policy,
		corsOrigins:       opts.CORSOrigins,
		enableHSTS:        opts.EnableHSTS,
		enableCompression: opts.EnableCompression,
	}
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", monitoring.RequestIDHeader},
		ExposeHeaders: []string{monitoring.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(s.corsOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.corsOrigins
	}
	return cfg
}

// setupRouter builds the gin engine with middleware and routes
func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()

	// Order matters: the request id must exist before anything logs, and the
	// error handler must wrap every handler that calls c.Error.
	r.Use(monitoring.RequestIDMiddleware())
	r.Use(errors.RecoveryHandler())
	if s.enableCompression {
		r.Use(middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig()).Handler())
	}
	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(s.logger, maxBodyBytes))
	r.Use(errors.ErrorHandler())
	r.Use(security.SecurityHeadersMiddleware(s.enableHSTS))
	r.Use(cors.New(s.corsConfig()))
	r.Use(security.RequestTimeout(s.policy.RequestTimeout))
	r.Use(security.ValidateContentType())

	api := r.Group("/api")
	{
		api.POST("/analyze", s.limiter.IPRateLimitMiddleware(), s.handleAnalyze)
		api.GET("/countries", s.handleCountries)
		api.GET("/cultural-dimensions/:code", s.handleCulturalDimensions)
		api.GET("/bias-patterns", s.handleBiasPatterns)
		api.GET("/rate-limit/status", s.limiter.HandleRateLimitStatus())
	}

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
