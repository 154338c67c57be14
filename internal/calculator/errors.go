package calculator

import "errors"

var (
	// ErrInvalidAmount is returned when the requested order amount is not a positive integer.
	ErrInvalidAmount = errors.New("order amount must be a positive integer")
	// ErrInvalidPackSizes is returned when a pack size list contains a non-positive entry.
	ErrInvalidPackSizes = errors.New("pack sizes must be positive integers")
	// ErrNoFeasiblePlan is returned when there are no pack sizes to build a plan from.
	ErrNoFeasiblePlan = errors.New("no pack sizes available to fulfil the order")
	// ErrAmountTooLarge is returned when the order amount exceeds the configured calculation limit.
	ErrAmountTooLarge = errors.New("order amount exceeds the calculation limit")
	// ErrTooManyPackSizes is returned when more than MaxPackSizes distinct sizes are supplied.
	ErrTooManyPackSizes = errors.New("too many pack sizes")
)
