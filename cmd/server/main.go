package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/analysis"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/bias"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/cache"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/config"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/monitoring"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/oracle"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/ratelimit"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/reference"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Structured logging setup
	appLogger := monitoring.NewLogger(monitoring.ParseLevel(cfg.LogLevel))
	slog.SetDefault(appLogger.Logger)
	gin.SetMode(cfg.GinMode)

	appMetrics := monitoring.NewMetrics()

	srv, cleanup, err := buildServer(context.Background(), cfg, appMetrics, appLogger)
	if err != nil {
		slog.Error("Failed to initialize server", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port, "oracle_enabled", srv.guard != nil)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	appLogger.SystemLogger("shutdown", "server exited")
}

// buildServer loads the datasets and wires the engine, oracle and rate
// limiter. The returned cleanup releases the limiter, the oracle cache and
// the redis connection.
func buildServer(ctx context.Context, cfg config.Config, metrics *monitoring.Metrics, logger *monitoring.Logger) (*Server, func(), error) {
	store, err := loadReference(cfg.ReferenceDataPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load reference data: %w", err)
	}
	library, err := loadPatterns(cfg.PatternLibraryPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load bias patterns: %w", err)
	}
	lexicon, err := loadLexicon(cfg.LexiconPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load lexicon: %w", err)
	}
	slog.Info("Datasets loaded", "countries", store.Len(), "bias_patterns", library.Len())

	var (
		guard   *oracle.Guard
		signals *cache.Cache[oracle.Signal]
		o       oracle.Oracle
	)
	if cfg.OracleConfigured() {
		gemini, err := oracle.NewGeminiOracle(ctx, oracle.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gemini oracle: %w", err)
		}

		guardCfg := oracle.DefaultGuardConfig()
		guardCfg.Timeout = cfg.OracleTimeout
		guard = oracle.NewGuard(gemini, guardCfg, metrics, logger)
		o = guard

		if cfg.OracleCacheTTL > 0 {
			signals = cache.New[oracle.Signal](cache.Config{
				TTL:             cfg.OracleCacheTTL,
				MaxItems:        cfg.OracleCacheSize,
				CleanupInterval: 10 * time.Minute,
			})
			o = oracle.NewCached(guard, signals, metrics)
		}
	} else {
		slog.Warn("Oracle disabled, analysis uses the keyword signal only")
	}

	analyzer := analysis.NewCulturalAnalyzer(store, lexicon, o, analysis.AnalyzerConfig{
		Concurrency:   cfg.AnalysisConcurrency,
		OracleTimeout: cfg.OracleTimeout,
	}).WithLogger(logger.Logger)

	scorer := analysis.NewScorer(analysis.ScorerConfig{
		AdaptationThreshold: cfg.AdaptationThreshold,
		MarginK:             analysis.DefaultMarginK,
	})

	engine := analysis.NewEngine(store, bias.NewDetector(library), analyzer, scorer,
		analysis.WithMetrics(metrics),
		analysis.WithLogger(logger))

	redisClient, err := ratelimit.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Warn("Redis unavailable, using in-memory rate limiting", "error", err)
	}

	limitCfg := ratelimit.DefaultConfig()
	limitCfg.IPLimitPerMin = cfg.RateLimitPerMin
	limiter := ratelimit.NewRateLimiter(redisClient, limitCfg, metrics)

	policy := security.DefaultInputPolicy()
	policy.RequestTimeout = cfg.RequestTimeout

	srv := NewServer(ServerOptions{
		Engine:            engine,
		Guard:             guard,
		Limiter:           limiter,
		Metrics:           metrics,
		Logger:            logger,
		Policy:            policy,
		CORSOrigins:       cfg.CORSAllowedOrigins,
		EnableHSTS:        cfg.EnableHSTS,
		EnableCompression: cfg.EnableCompression,
	})

	cleanup := func() {
		limiter.Close()
		if signals != nil {
			signals.Close()
		}
		if err := redisClient.Close(); err != nil {
			slog.Error("Failed to close redis client", "error", err)
		}
	}
	return srv, cleanup, nil
}

func loadReference(path string) (*reference.Store, error) {
	if path == "" {
		return reference.Default()
	}
	return reference.LoadFile(path)
}

func loadPatterns(path string) (*bias.Library, error) {
	if path == "" {
		return bias.DefaultLibrary()
	}
	return bias.LoadLibraryFile(path)
}

func loadLexicon(path string) (*analysis.Lexicon, error) {
	if path == "" {
		return analysis.DefaultLexicon()
	}
	return analysis.LoadLexiconFile(path)
}
