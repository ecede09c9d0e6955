package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
)

func TestBreakerIgnoresConsumerCancellation(t *testing.T) {
	breaker := newGeminiBreaker()

	// A burst of cancelled streams (client disconnects) must leave the
	// breaker closed for other callers.
	for i := 0; i < 10; i++ {
		_, err := breaker.Execute(func() (interface{}, error) {
			return nil, context.Canceled
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled passed through, got %v", err)
		}
	}

	if state := breaker.State(); state != gobreaker.StateClosed {
		t.Errorf("breaker opened on cancellations: state %v", state)
	}
}

func TestBreakerOpensOnRealFailures(t *testing.T) {
	breaker := newGeminiBreaker()

	for i := 0; i < 5; i++ {
		breaker.Execute(func() (interface{}, error) {
			return nil, errors.New("upstream exploded")
		})
	}

	if state := breaker.State(); state == gobreaker.StateClosed {
		t.Error("breaker should open after repeated upstream failures")
	}
}
