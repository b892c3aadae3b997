// Package services defines the business logic of the order-extraction
// pipeline: message ingestion, order materialization, duplicate merging,
// lifecycle management, and aggregation. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer;
// classification into task outcomes (skipped, failed, retryable) is
// performed at the task boundary.
package services

import "errors"

var (
	// ErrMissingFields is returned when a message event lacks one of the
	// required fields (message id, group id, sender id, content, or
	// timestamp). Such events are recorded as validation failures and are
	// never retried automatically.
	ErrMissingFields = errors.New("message event missing required fields")

	// ErrNoValidItems is returned when a candidate classified as an order
	// has no items left after the validation gate. An order with zero
	// valid lines is never materialized.
	ErrNoValidItems = errors.New("order has no valid items")

	// ErrCustomerUnresolved is returned when a customer can neither be
	// found nor created for a message's sender identity.
	ErrCustomerUnresolved = errors.New("customer could not be resolved")

	// ErrGroupUnresolved is returned when a conversation group can neither
	// be found nor created for a message's external group id.
	ErrGroupUnresolved = errors.New("group could not be resolved")

	// ErrOrderNotFound indicates that the requested order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrCustomerNotFound indicates that the requested customer does not
	// exist.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrInvalidTransition is returned when a status change violates the
	// forward-only lifecycle rules.
	ErrInvalidTransition = errors.New("illegal order status transition")
)
