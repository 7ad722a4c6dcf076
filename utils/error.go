package utils

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError marks malformed or out-of-range input (quantity <= 0,
// negative price, end date before start date). Surfaced to the caller with
// the message as-is.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func NewValidationError(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError marks a reference to an entity that does not exist.
type NotFoundError struct {
	Resource string
	Id       int
}

func (e *NotFoundError) Error() string {
	if e.Id > 0 {
		return fmt.Sprintf("%s %d not found", e.Resource, e.Id)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func NewNotFoundError(resource string, id int) error {
	return &NotFoundError{Resource: resource, Id: id}
}

func IsNotFoundError(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe) || errors.Is(err, ErrorRecordNotFound)
}

// InsufficientInventoryError is a business-rule rejection, not a system
// fault: the user adjusts the quantity and retries. Inventory is never
// partially decremented when this is returned.
type InsufficientInventoryError struct {
	ItemName  string
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("quantity used (%s) cannot exceed remaining quantity (%s) of %s",
		e.Requested, e.Remaining, e.ItemName)
}

func IsInsufficientInventoryError(err error) bool {
	var iie *InsufficientInventoryError
	return errors.As(err, &iie)
}

// StorageError wraps a persistence-layer failure. During a primary write it
// propagates and aborts the transaction; during activity logging the call
// site logs and suppresses it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func NewStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
