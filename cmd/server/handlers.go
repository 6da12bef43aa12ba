package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/errors"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/monitoring"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/reference"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/resilience"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/types"
)

// analyzeResponse is the AnalysisResult plus the caller-observable latency
type analyzeResponse struct {
	*types.AnalysisResult
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// handleAnalyze runs one analysis. Validation, timeout and rate-limit errors
// are rendered by errors.ErrorHandler.
func (s *Server) handleAnalyze(c *gin.Context) {
	start := time.Now()

	var req types.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	if err := s.policy.ValidateAnalyzeRequest(&req); err != nil {
		_ = c.Error(err)
		return
	}

	slog.Info("Starting analysis",
		"countries", req.TargetCountries,
		"campaign_type", req.CampaignType,
		"industry", req.Industry,
		"request_id", c.GetString("request_id"))

	result, err := s.engine.Run(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, analyzeResponse{
		AnalysisResult:   result,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	})
}

type countrySummary struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Region string `json:"region"`
}

func (s *Server) handleCountries(c *gin.Context) {
	countries := s.engine.Store().Countries()

	out := make([]countrySummary, 0, len(countries))
	for _, country := range countries {
		out = append(out, countrySummary{Code: country.Code, Name: country.Name, Region: country.Region})
	}

	c.JSON(http.StatusOK, gin.H{
		"countries":   out,
		"total_count": len(out),
	})
}

func (s *Server) handleCulturalDimensions(c *gin.Context) {
	code := c.Param("code")

	country, ok := s.engine.Store().Lookup(code)
	if !ok {
		_ = c.Error(errors.NewNotFoundError("country", reference.Normalize(code)))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"country":          country.Code,
		"name":             country.Name,
		"region":           country.Region,
		"dimensions":       country.Dimensions,
		"interpretation":   reference.Interpret(country.Dimensions),
		"estimated":        country.Estimated,
		"completeness":     country.Completeness(),
		"cultural_context": s.engine.Store().ContextFor(country.Code),
	})
}

type patternSummary struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Severity    int    `json:"base_severity"`
	Description string `json:"description"`
}

func (s *Server) handleBiasPatterns(c *gin.Context) {
	patterns := s.engine.Detector().Library().Patterns()

	out := make([]patternSummary, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, patternSummary{
			ID:          p.ID,
			Type:        string(p.Type),
			Severity:    p.BaseSeverity,
			Description: p.Description,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"patterns":    out,
		"total_count": len(out),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	countries := s.engine.Store().Len()
	patterns := s.engine.Detector().Library().Len()

	oracleHealth := gin.H{"enabled": false}
	status := "ok"
	if s.guard != nil {
		health := s.guard.Health()
		oracleHealth = gin.H{
			"enabled":       true,
			"name":          s.guard.Name(),
			"level":         health.Level,
			"error_rate":    health.ErrorRate,
			"circuit_state": s.guard.BreakerState().String(),
		}
		if health.Level >= resilience.LevelCritical || s.guard.BreakerState() == resilience.StateOpen {
			status = "degraded"
		}
	}

	response := gin.H{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   version,
		"uptime":    monitoring.Uptime().String(),
		"oracle":    oracleHealth,
		"datasets": gin.H{
			"countries":     countries,
			"bias_patterns": patterns,
		},
		"metrics": s.metrics.GetStats(),
	}

	// An oracle outage only lowers data quality; missing reference data
	// means no request can be answered.
	if countries == 0 || patterns == 0 {
		response["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}
