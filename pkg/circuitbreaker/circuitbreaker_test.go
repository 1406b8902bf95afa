package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func newTestBreaker(clock *time.Time) *CircuitBreaker {
	cb := NewCircuitBreaker(Config{
		FailureThreshold:    2,
		SuccessThreshold:    1,
		Timeout:             time.Second,
		HalfOpenMaxRequests: 1,
	})
	cb.now = func() time.Time { return *clock }
	cb.lastStateTime = *clock
	return cb
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	clock := time.Unix(1000, 0)
	cb := newTestBreaker(&clock)

	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: err = %v, want errBoom", i, err)
		}
	}
	if got := cb.GetState(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Errorf("err = %v, want ErrCircuitBreakerOpen", err)
	}
	if called {
		t.Error("fn ran while breaker open")
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	clock := time.Unix(1000, 0)
	cb := newTestBreaker(&clock)

	var transitions []string
	cb.config.OnStateChange = func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}

	_ = cb.Execute(func() error { return errBoom })
	_ = cb.Execute(func() error { return errBoom })

	clock = clock.Add(2 * time.Second)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("half-open trial err = %v", err)
	}
	if got := cb.GetState(); got != StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}

	want := []string{"closed->open", "open->half_open", "half_open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition[%d] = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	clock := time.Unix(1000, 0)
	cb := newTestBreaker(&clock)

	_ = cb.Execute(func() error { return errBoom })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errBoom })

	if got := cb.GetState(); got != StateClosed {
		t.Errorf("state = %v, want closed", got)
	}
}
