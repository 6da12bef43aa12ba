package resilience

import (
	"log/slog"
	"sync"
	"time"
)

// DegradationLevel represents the current degradation state
type DegradationLevel int

const (
	LevelNormal DegradationLevel = iota
	LevelDegraded
	LevelCritical
	LevelEmergency
)

func (l DegradationLevel) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelDegraded:
		return "degraded"
	case LevelCritical:
		return "critical"
	case LevelEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// MarshalText renders the level by name in JSON health output
func (l DegradationLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// DegradationConfig holds configuration for graceful degradation
type DegradationConfig struct {
	DegradedThreshold  float64       `json:"degraded_threshold"`   // Error rate threshold (0.0-1.0)
	CriticalThreshold  float64       `json:"critical_threshold"`   // Error rate threshold (0.0-1.0)
	EmergencyThreshold float64       `json:"emergency_threshold"`  // Error rate threshold (0.0-1.0)
	RecoveryTimeWindow time.Duration `json:"recovery_time_window"` // Error rate is computed per window
	MinRequests        int64         `json:"min_requests"`         // Requests per window before the rate counts
}

// DefaultDegradationConfig returns sensible defaults
func DefaultDegradationConfig() DegradationConfig {
	return DegradationConfig{
		DegradedThreshold:  0.1,  // 10% error rate
		CriticalThreshold:  0.25, // 25% error rate
		EmergencyThreshold: 0.5,  // 50% error rate
		RecoveryTimeWindow: 5 * time.Minute,
		MinRequests:        10,
	}
}

// ServiceHealth represents the health status of a service
type ServiceHealth struct {
	ServiceName   string           `json:"service_name"`
	Level         DegradationLevel `json:"level"`
	ErrorRate     float64          `json:"error_rate"`
	TotalRequests int64            `json:"total_requests"`
	ErrorCount    int64            `json:"error_count"`
	LastError     error            `json:"-"`
	LastErrorTime time.Time        `json:"last_error_time,omitempty"`
	WindowStart   time.Time        `json:"window_start"`
	StatusMessage string           `json:"status_message"`
}

// DegradationManager tracks per-service error rates over a rolling window.
// A service in emergency is reported unavailable until its window rolls over.
type DegradationManager struct {
	config   DegradationConfig
	services map[string]*ServiceHealth
	mutex    sync.RWMutex
	now      func() time.Time
}

// NewDegradationManager creates a new degradation manager
func NewDegradationManager(config DegradationConfig) *DegradationManager {
	if config.RecoveryTimeWindow <= 0 {
		config.RecoveryTimeWindow = DefaultDegradationConfig().RecoveryTimeWindow
	}
	return &DegradationManager{
		config:   config,
		services: make(map[string]*ServiceHealth),
		now:      time.Now,
	}
}

// RegisterService registers a service for tracking
func (dm *DegradationManager) RegisterService(serviceName string) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	dm.services[serviceName] = &ServiceHealth{
		ServiceName:   serviceName,
		Level:         LevelNormal,
		WindowStart:   dm.now(),
		StatusMessage: "Service is healthy",
	}

	slog.Info("Registered service for degradation management", "service", serviceName)
}

// RecordSuccess records a successful request
func (dm *DegradationManager) RecordSuccess(serviceName string) {
	dm.record(serviceName, nil)
}

// RecordError records a failed request
func (dm *DegradationManager) RecordError(serviceName string, err error) {
	dm.record(serviceName, err)
}

func (dm *DegradationManager) record(serviceName string, err error) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	service, exists := dm.services[serviceName]
	if !exists {
		return
	}

	dm.rollWindow(service)

	service.TotalRequests++
	if err != nil {
		service.ErrorCount++
		service.LastError = err
		service.LastErrorTime = dm.now()
	}
	service.ErrorRate = float64(service.ErrorCount) / float64(service.TotalRequests)

	dm.updateDegradationLevel(service)
}

// rollWindow resets counters once the window has elapsed; mutex must be held
func (dm *DegradationManager) rollWindow(service *ServiceHealth) {
	now := dm.now()
	if now.Sub(service.WindowStart) < dm.config.RecoveryTimeWindow {
		return
	}

	service.WindowStart = now
	service.TotalRequests = 0
	service.ErrorCount = 0
	service.ErrorRate = 0
	dm.updateDegradationLevel(service)
}

// updateDegradationLevel updates the degradation level based on current metrics
func (dm *DegradationManager) updateDegradationLevel(service *ServiceHealth) {
	oldLevel := service.Level

	var newLevel DegradationLevel
	var statusMessage string

	switch {
	case service.TotalRequests < dm.config.MinRequests:
		newLevel = LevelNormal
		statusMessage = "Service is healthy"
	case service.ErrorRate >= dm.config.EmergencyThreshold:
		newLevel = LevelEmergency
		statusMessage = "Service is in emergency state - high error rate"
	case service.ErrorRate >= dm.config.CriticalThreshold:
		newLevel = LevelCritical
		statusMessage = "Service is in critical state - elevated error rate"
	case service.ErrorRate >= dm.config.DegradedThreshold:
		newLevel = LevelDegraded
		statusMessage = "Service is degraded - moderate error rate"
	default:
		newLevel = LevelNormal
		statusMessage = "Service is healthy"
	}

	service.Level = newLevel
	service.StatusMessage = statusMessage

	if oldLevel != newLevel {
		slog.Warn("Service degradation level changed",
			"service", service.ServiceName,
			"old_level", oldLevel.String(),
			"new_level", newLevel.String(),
			"error_rate", service.ErrorRate,
			"total_requests", service.TotalRequests,
			"error_count", service.ErrorCount)
	}
}

// GetServiceHealth returns a copy of the health status of a service
func (dm *DegradationManager) GetServiceHealth(serviceName string) (ServiceHealth, bool) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	service, exists := dm.services[serviceName]
	if !exists {
		return ServiceHealth{}, false
	}

	dm.rollWindow(service)
	return *service, true
}

// IsServiceAvailable reports false only while a service is in emergency
func (dm *DegradationManager) IsServiceAvailable(serviceName string) bool {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	service, exists := dm.services[serviceName]
	if !exists {
		return false
	}

	dm.rollWindow(service)
	return service.Level != LevelEmergency
}

// ResetService resets a service's health status
func (dm *DegradationManager) ResetService(serviceName string) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	if service, exists := dm.services[serviceName]; exists {
		*service = ServiceHealth{
			ServiceName:   serviceName,
			Level:         LevelNormal,
			WindowStart:   dm.now(),
			StatusMessage: "Service is healthy",
		}
		slog.Info("Service health reset", "service", serviceName)
	}
}
