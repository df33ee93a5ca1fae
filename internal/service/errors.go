package service

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart            = errors.New("cart has no items")
	ErrInvalidCartLine      = errors.New("invalid cart line")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
	ErrInvalidReference     = errors.New("invalid reference")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrTransactionFailed    = errors.New("transaction failed")
	ErrCheckoutInProgress   = errors.New("checkout with this idempotency key is already in progress")
)

// InsufficientStockError reports the first product whose stock cannot cover the cart
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
	Shortfall   int
}

func newInsufficientStockError(productID int64, name string, requested, available int) *InsufficientStockError {
	return &InsufficientStockError{
		ProductID:   productID,
		ProductName: name,
		Requested:   requested,
		Available:   available,
		Shortfall:   requested - available,
	}
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (%s): requested %d, available %d, short by %d",
		e.ProductID, e.ProductName, e.Requested, e.Available, e.Shortfall)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// InvalidReferenceError reports a customer, seller or product that does not exist
type InvalidReferenceError struct {
	Entity string
	ID     int64
	Reason string
}

func (e *InvalidReferenceError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s reference %d: %s", e.Entity, e.ID, e.Reason)
	}
	return fmt.Sprintf("invalid %s reference %d", e.Entity, e.ID)
}

func (e *InvalidReferenceError) Is(target error) bool {
	return target == ErrInvalidReference
}

// TransactionFailedError wraps a storage failure. Nothing from the attempt was persisted.
type TransactionFailedError struct {
	Err       error
	Retryable bool
}

func (e *TransactionFailedError) Error() string {
	return fmt.Sprintf("transaction failed: %v", e.Err)
}

func (e *TransactionFailedError) Unwrap() error {
	return e.Err
}

func (e *TransactionFailedError) Is(target error) bool {
	return target == ErrTransactionFailed
}

// failureReason maps an error to the metrics label used for failed checkouts
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrInvalidCartLine), errors.Is(err, ErrInvalidPaymentMethod), errors.Is(err, ErrInvalidPaymentStatus):
		return "invalid_request"
	case errors.Is(err, ErrInvalidReference):
		return "invalid_reference"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrCheckoutInProgress):
		return "in_progress"
	default:
		return "transaction_failed"
	}
}
