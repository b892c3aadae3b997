// Package handlers – task error classification.
package handlers

import (
	"errors"

	"github.com/tbourn/go-order-backend/internal/services"
	"github.com/tbourn/go-order-backend/internal/tasks"
)

// classify marks transient failures retryable so the pool re-runs the task
// with backoff. Validation and lifecycle-rule errors are deterministic and
// pass through unwrapped: re-running them cannot change the answer.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, services.ErrMissingFields),
		errors.Is(err, services.ErrNoValidItems),
		errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrCustomerNotFound),
		errors.Is(err, services.ErrInvalidTransition):
		return err
	}
	return tasks.Retryable(err)
}
