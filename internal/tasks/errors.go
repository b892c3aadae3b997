package tasks

import "errors"

// ErrPoolClosed is returned by Submit after Close has begun.
var ErrPoolClosed = errors.New("task pool closed")

// ErrUnknownQueue is returned by Submit for a queue name the pool was not
// configured with.
var ErrUnknownQueue = errors.New("unknown task queue")

// retryableError marks a failure as transient so the worker retries it.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable wraps err so the pool will re-run the task with backoff, up to
// the configured attempt limit. Validation failures must not be wrapped:
// re-running them can never succeed.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err was marked with Retryable.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
