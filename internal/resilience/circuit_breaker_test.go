package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCircuitBreaker_StateClosed(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 1*time.Second)

	if cb.GetState() != StateClosed {
		t.Errorf("Expected initial state to be Closed, got %s", cb.GetState())
	}

	if !cb.allowRequest() {
		t.Error("Expected to allow request in Closed state")
	}
}

func TestCircuitBreaker_OpenAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 1*time.Second)

	cb.RecordResult(false)
	cb.RecordResult(false)
	if cb.GetState() != StateClosed {
		t.Error("Expected state to still be Closed after 2 failures")
	}

	// Third failure should open circuit
	cb.RecordResult(false)
	if cb.GetState() != StateOpen {
		t.Error("Expected state to be Open after 3 failures")
	}

	if cb.allowRequest() {
		t.Error("Expected to not allow request in Open state")
	}
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 50*time.Millisecond)

	cb.RecordResult(false)
	cb.RecordResult(false)
	cb.RecordResult(false)

	if cb.GetState() != StateOpen {
		t.Fatal("Expected circuit to be Open")
	}

	time.Sleep(80 * time.Millisecond)

	if !cb.allowRequest() {
		t.Error("Expected to allow request after timeout (HalfOpen)")
	}

	state, _, _, _ := cb.GetStats()
	if state != StateHalfOpen {
		t.Errorf("Expected state to be HalfOpen, got %s", state)
	}
}

func TestCircuitBreaker_CloseAfterSuccess(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 50*time.Millisecond)

	cb.RecordResult(false)
	cb.RecordResult(false)
	cb.RecordResult(false)

	time.Sleep(80 * time.Millisecond)

	for i := 0; i < 3; i++ {
		if err := cb.Call(func() error { return nil }, nil); err != nil {
			t.Fatalf("Expected half-open call %d to pass, got %v", i, err)
		}
	}

	if cb.GetState() != StateClosed {
		t.Errorf("Expected state to be Closed after successes in HalfOpen, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_OpenAfterFailureInHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 50*time.Millisecond)

	cb.RecordResult(false)
	cb.RecordResult(false)
	cb.RecordResult(false)

	time.Sleep(80 * time.Millisecond)

	err := cb.Call(func() error { return errors.New("still down") }, nil)
	if err == nil {
		t.Fatal("Expected error from half-open trial call")
	}

	if cb.GetState() != StateOpen {
		t.Error("Expected state to be Open after failure in HalfOpen")
	}
}

func TestCircuitBreaker_Call(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 1*time.Second)

	if err := cb.Call(func() error { return nil }, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if err := cb.Call(func() error { return errors.New("test error") }, nil); err == nil {
		t.Error("Expected error from failed call")
	}
}

func TestCircuitBreaker_CallOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 1*time.Second)

	cb.RecordResult(false)

	called := false
	err := cb.Call(func() error {
		called = true
		return nil
	}, nil)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("Expected fn not to run while circuit is open")
	}
}

func TestCircuitBreaker_IgnoredFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 1*time.Second)
	callerMistake := errors.New("voice not found")

	err := cb.Call(func() error { return callerMistake }, func(err error) bool {
		return !errors.Is(err, callerMistake)
	})
	if !errors.Is(err, callerMistake) {
		t.Errorf("Expected caller error to pass through, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected ignored failure to keep breaker Closed, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	cb := NewCircuitBreaker("cartesia", 2, 1*time.Second)

	var mu sync.Mutex
	var transitions []CircuitState
	cb.OnStateChange(func(name string, from, to CircuitState) {
		if name != "cartesia" {
			t.Errorf("Expected name 'cartesia', got %q", name)
		}
		mu.Lock()
		transitions = append(transitions, to)
		mu.Unlock()
	})

	cb.RecordResult(false)
	cb.RecordResult(false)
	cb.Reset()

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 2 || transitions[0] != StateOpen || transitions[1] != StateClosed {
		t.Errorf("Expected [open closed], got %v", transitions)
	}
}

func TestCircuitBreaker_GetStats(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 1*time.Second)

	cb.RecordResult(true)
	cb.RecordResult(true)
	cb.RecordResult(false)

	state, requestCount, failureCount, failureRate := cb.GetStats()

	if state != StateClosed {
		t.Errorf("Expected state Closed, got %s", state)
	}
	if requestCount != 3 {
		t.Errorf("Expected 3 requests, got %d", requestCount)
	}
	if failureCount != 1 {
		t.Errorf("Expected 1 failure, got %d", failureCount)
	}
	if failureRate < 33.0 || failureRate > 34.0 {
		t.Errorf("Expected failure rate around 33.33%%, got %.2f%%", failureRate)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 1*time.Second)

	cb.RecordResult(false)
	cb.RecordResult(false)
	cb.RecordResult(false)

	if cb.GetState() != StateOpen {
		t.Fatal("Expected circuit to be Open")
	}

	cb.Reset()

	if cb.GetState() != StateClosed {
		t.Error("Expected state to be Closed after reset")
	}
	if !cb.allowRequest() {
		t.Error("Expected requests to be allowed after reset")
	}
}
