package orders

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest       = errors.New("invalid order request")
	ErrProductNotFound      = errors.New("product not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidStatus        = errors.New("invalid order status")
	ErrVersionConflict      = errors.New("order was modified concurrently")
	ErrTransitionInProgress = errors.New("another status change is in progress for this order")
)

// InsufficientStockError is an expected business outcome, not a fault.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// RollbackError wraps the fault that aborted a placement together with the
// faults hit while compensating it. Both stay reachable through errors.Is/As.
type RollbackError struct {
	Cause  error
	Faults []error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("%v (rollback incomplete: %v)", e.Cause, errors.Join(e.Faults...))
}

func (e *RollbackError) Unwrap() []error {
	return append([]error{e.Cause}, e.Faults...)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
