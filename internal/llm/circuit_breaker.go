package llm

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrCircuitOpen is returned while a breaker rejects calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig tunes every breaker created by a CircuitBreaker
type BreakerConfig struct {
	FailureThreshold uint32
	SuccessThreshold uint32
	Timeout          time.Duration
}

// DefaultBreakerConfig opens after 5 consecutive failures and probes again after 30s
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// CircuitBreaker implements the circuit breaker pattern, one breaker per key
type CircuitBreaker struct {
	breakers map[string]*Breaker
	cfg      BreakerConfig
	logger   *logrus.Logger
	now      func() time.Time
	mu       sync.RWMutex
}

// Breaker represents a single circuit breaker
type Breaker struct {
	key         string
	failures    uint32
	successes   uint32
	lastFailure time.Time
	state       BreakerState
	mu          sync.Mutex
}

// BreakerState represents the circuit breaker state
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(cfg BreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CircuitBreaker{
		breakers: make(map[string]*Breaker),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Execute executes a function with circuit breaker protection
func (cb *CircuitBreaker) Execute(key string, fn func() error) error {
	breaker := cb.getOrCreateBreaker(key)

	if cb.currentState(breaker) == StateOpen {
		return fmt.Errorf("%w for %s", ErrCircuitOpen, key)
	}

	err := fn()

	if err != nil {
		cb.recordFailure(breaker)
	} else {
		cb.recordSuccess(breaker)
	}

	return err
}

// getOrCreateBreaker gets or creates a breaker for a key
func (cb *CircuitBreaker) getOrCreateBreaker(key string) *Breaker {
	cb.mu.RLock()
	breaker, exists := cb.breakers[key]
	cb.mu.RUnlock()

	if exists {
		return breaker
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	// Double-check after acquiring write lock
	if breaker, exists := cb.breakers[key]; exists {
		return breaker
	}

	breaker = &Breaker{key: key, state: StateClosed}
	cb.breakers[key] = breaker
	return breaker
}

// currentState returns the breaker state, moving Open to HalfOpen once the timeout passed
func (cb *CircuitBreaker) currentState(b *Breaker) BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && cb.now().Sub(b.lastFailure) > cb.cfg.Timeout {
		b.state = StateHalfOpen
		b.failures = 0
		b.successes = 0
	}
	return b.state
}

func (cb *CircuitBreaker) recordFailure(b *Breaker) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = cb.now()

	switch b.state {
	case StateClosed:
		if b.failures >= cb.cfg.FailureThreshold {
			b.state = StateOpen
			cb.logger.WithFields(logrus.Fields{"breaker": b.key, "failures": b.failures}).Warn("opening circuit breaker")
		}
	case StateHalfOpen:
		b.state = StateOpen
		cb.logger.WithField("breaker", b.key).Warn("re-opening circuit breaker after failure in half-open state")
	}
}

func (cb *CircuitBreaker) recordSuccess(b *Breaker) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes++

	switch b.state {
	case StateClosed:
		b.failures = 0 // Reset failure count on success
	case StateHalfOpen:
		if b.successes >= cb.cfg.SuccessThreshold {
			cb.logger.WithFields(logrus.Fields{"breaker": b.key, "successes": b.successes}).Info("closing circuit breaker")
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
		}
	}
}

// GetState returns the state of a specific breaker
func (cb *CircuitBreaker) GetState(key string) BreakerState {
	cb.mu.RLock()
	breaker, exists := cb.breakers[key]
	cb.mu.RUnlock()

	if !exists {
		return StateClosed
	}

	return cb.currentState(breaker)
}
