package handlers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/tbourn/go-order-backend/internal/services"
	"github.com/tbourn/go-order-backend/internal/tasks"
)

func TestClassify(t *testing.T) {
	if classify(nil) != nil {
		t.Fatal("nil must stay nil")
	}

	// Deterministic failures pass through untouched.
	for _, err := range []error{
		services.ErrMissingFields,
		services.ErrNoValidItems,
		services.ErrOrderNotFound,
		services.ErrCustomerNotFound,
		services.ErrInvalidTransition,
		fmt.Errorf("materialize: %w", services.ErrNoValidItems),
	} {
		if got := classify(err); tasks.IsRetryable(got) {
			t.Fatalf("classify(%v) marked retryable", err)
		}
	}

	// Anything else is treated as transient.
	dbErr := errors.New("sql: database is closed")
	got := classify(dbErr)
	if !tasks.IsRetryable(got) {
		t.Fatalf("classify(%v) not retryable", dbErr)
	}
	if !errors.Is(got, dbErr) {
		t.Fatal("retryable wrapper must preserve the cause")
	}
}
