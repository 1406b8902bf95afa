package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State 表示熔断器状态
type State int

const (
	StateClosed   State = iota // requests pass
	StateOpen                  // requests rejected
	StateHalfOpen              // a few trial calls allowed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitBreakerOpen is returned by Execute while the breaker rejects calls.
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// Config 熔断器配置
type Config struct {
	// consecutive failures that open the breaker
	FailureThreshold int
	// successes in half-open that close it again
	SuccessThreshold int
	// how long the breaker stays open before probing
	Timeout time.Duration
	// concurrent trial calls allowed while half-open
	HalfOpenMaxRequests int
	// OnStateChange, if set, is called outside the lock after a transition.
	OnStateChange func(from, to State)
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 3,
	}
}

// CircuitBreaker 熔断器
type CircuitBreaker struct {
	config Config
	now    func() time.Time

	state         State
	failureCount  int
	successCount  int
	halfOpenCount int
	lastStateTime time.Time

	mu sync.Mutex
}

// NewCircuitBreaker 创建新的熔断器
func NewCircuitBreaker(config Config) *CircuitBreaker {
	return &CircuitBreaker{
		config:        config,
		now:           time.Now,
		state:         StateClosed,
		lastStateTime: time.Now(),
	}
}

// Execute runs fn unless the breaker is open and records its outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	transition := cb.advance()

	switch cb.state {
	case StateOpen:
		cb.mu.Unlock()
		cb.notify(transition)
		return ErrCircuitBreakerOpen
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.HalfOpenMaxRequests {
			cb.mu.Unlock()
			cb.notify(transition)
			return ErrCircuitBreakerOpen
		}
		cb.halfOpenCount++
	}
	cb.mu.Unlock()
	cb.notify(transition)

	err := fn()

	cb.mu.Lock()
	if err != nil {
		transition = cb.onFailure()
	} else {
		transition = cb.onSuccess()
	}
	cb.mu.Unlock()
	cb.notify(transition)

	return err
}

type change struct {
	from, to State
	ok       bool
}

func (cb *CircuitBreaker) setState(to State) change {
	from := cb.state
	cb.state = to
	cb.lastStateTime = cb.now()
	return change{from: from, to: to, ok: from != to}
}

func (cb *CircuitBreaker) notify(c change) {
	if c.ok && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(c.from, c.to)
	}
}

// advance moves an open breaker to half-open once the timeout elapsed.
func (cb *CircuitBreaker) advance() change {
	if cb.state == StateOpen && cb.now().Sub(cb.lastStateTime) >= cb.config.Timeout {
		cb.halfOpenCount = 0
		cb.successCount = 0
		return cb.setState(StateHalfOpen)
	}
	return change{}
}

func (cb *CircuitBreaker) onFailure() change {
	switch cb.state {
	case StateHalfOpen:
		cb.halfOpenCount = 0
		return cb.setState(StateOpen)
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			return cb.setState(StateOpen)
		}
	}
	return change{}
}

func (cb *CircuitBreaker) onSuccess() change {
	switch cb.state {
	case StateHalfOpen:
		cb.successCount++
		cb.halfOpenCount--
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.failureCount = 0
			return cb.setState(StateClosed)
		}
	case StateClosed:
		cb.failureCount = 0
	}
	return change{}
}

// GetState 获取当前状态（线程安全）
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset 重置熔断器
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.halfOpenCount = 0
	cb.lastStateTime = cb.now()
}
