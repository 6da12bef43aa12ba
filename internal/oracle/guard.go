package oracle

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/errors"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/monitoring"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/resilience"
)

// DefaultTimeout bounds a single oracle attempt
const DefaultTimeout = 8 * time.Second

// Call outcomes recorded in metrics and logs
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomeMalformed   = "malformed"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeDegraded    = "degraded"
)

// GuardConfig configures the resilience wrapper around an oracle
type GuardConfig struct {
	Timeout     time.Duration
	Retry       resilience.RetryConfig
	Breaker     resilience.CircuitBreakerConfig
	Degradation resilience.DegradationConfig
}

// DefaultGuardConfig returns the defaults used by the server. Retries are
// kept short so a slow oracle cannot consume the request budget.
func DefaultGuardConfig() GuardConfig {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 2
	retry.InitialDelay = 200 * time.Millisecond

	return GuardConfig{
		Timeout: DefaultTimeout,
		Retry:   retry,
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
			SuccessThreshold: 1,
		},
		Degradation: resilience.DefaultDegradationConfig(),
	}
}

// Guard wraps an Oracle with a per-attempt timeout, retries, a circuit
// breaker and error-rate tracking. Every failure it returns matches
// errors.ErrOracleUnavailable.
type Guard struct {
	inner       Oracle
	config      GuardConfig
	breaker     *resilience.CircuitBreaker
	degradation *resilience.DegradationManager
	metrics     *monitoring.Metrics
	logger      *monitoring.Logger
}

// NewGuard wraps inner. metrics and logger may be nil.
func NewGuard(inner Oracle, config GuardConfig, metrics *monitoring.Metrics, logger *monitoring.Logger) *Guard {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Breaker.Name == "" {
		config.Breaker.Name = inner.Name()
	}
	userHook := config.Breaker.OnStateChange
	config.Breaker.OnStateChange = func(name string, from, to resilience.CircuitBreakerState) {
		metrics.RecordBreakerTransition(name, to.String())
		if logger != nil {
			logger.Warn("Oracle circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		}
		if userHook != nil {
			userHook(name, from, to)
		}
	}

	degradation := resilience.NewDegradationManager(config.Degradation)
	degradation.RegisterService(inner.Name())

	return &Guard{
		inner:       inner,
		config:      config,
		breaker:     resilience.NewCircuitBreaker(config.Breaker),
		degradation: degradation,
		metrics:     metrics,
		logger:      logger,
	}
}

// Name returns the wrapped oracle's name
func (g *Guard) Name() string {
	return g.inner.Name()
}

// InferSentiment calls the wrapped oracle under the guard's policies
func (g *Guard) InferSentiment(ctx context.Context, text string, country CountryContext) (Signal, error) {
	start := time.Now()
	name := g.inner.Name()

	if !g.degradation.IsServiceAvailable(name) {
		err := errors.NewOracleUnavailableError(name, stderrors.New("service degraded"))
		g.observe(country.Code, OutcomeDegraded, start, err)
		return Signal{}, err
	}

	var signal Signal
	err := resilience.RetryWithConfig(ctx, g.config.Retry, func() error {
		return g.breaker.Call(func() error {
			s, err := g.attempt(ctx, text, country)
			if err != nil {
				return err
			}
			signal = s
			return nil
		})
	})

	if err != nil {
		g.degradation.RecordError(name, err)
		outcome := classify(err)
		if !stderrors.Is(err, errors.ErrOracleUnavailable) {
			err = errors.NewOracleUnavailableError(name, err)
		}
		g.observe(country.Code, outcome, start, err)
		return Signal{}, err
	}

	g.degradation.RecordSuccess(name)
	g.observe(country.Code, OutcomeSuccess, start, nil)
	return signal, nil
}

// attempt runs one bounded call. Transport failures and timeouts come back
// retryable; malformed replies do not.
func (g *Guard) attempt(ctx context.Context, text string, country CountryContext) (Signal, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	signal, err := g.inner.InferSentiment(callCtx, text, country)
	if err == nil {
		err = signal.Validate()
	}
	if err == nil {
		return signal, nil
	}

	switch {
	case stderrors.Is(err, ErrMalformedResponse):
		return Signal{}, err
	case ctx.Err() != nil:
		return Signal{}, ctx.Err()
	case callCtx.Err() != nil || stderrors.Is(err, context.DeadlineExceeded):
		return Signal{}, errors.NewTimeoutError("oracle call timed out", err)
	default:
		return Signal{}, errors.NewOracleUnavailableError(g.inner.Name(), err)
	}
}

func classify(err error) string {
	var cbErr *resilience.CircuitBreakerError
	switch {
	case stderrors.As(err, &cbErr):
		return OutcomeCircuitOpen
	case stderrors.Is(err, ErrMalformedResponse):
		return OutcomeMalformed
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled):
		return OutcomeTimeout
	}
	if appErr := errors.ToAppError(err); appErr.Category == errors.CategoryTimeout {
		return OutcomeTimeout
	}
	return OutcomeError
}

func (g *Guard) observe(country, outcome string, start time.Time, err error) {
	duration := time.Since(start)
	g.metrics.RecordOracleCall(outcome, duration)
	if g.logger != nil {
		g.logger.OracleLogger(g.inner.Name(), country, outcome, duration, err)
	}
}

// BreakerState reports the circuit breaker state
func (g *Guard) BreakerState() resilience.CircuitBreakerState {
	return g.breaker.State()
}

// Health reports the oracle's error-rate health for the current window
func (g *Guard) Health() resilience.ServiceHealth {
	health, _ := g.degradation.GetServiceHealth(g.inner.Name())
	return health
}
