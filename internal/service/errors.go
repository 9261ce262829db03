package service

import "errors"

var (
	ErrInvalidQuantity        = errors.New("quantity must be greater than zero")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrPaidExceedsTotal       = errors.New("paid amount exceeds sale total")
	ErrOverClearance          = errors.New("clearance amount exceeds outstanding dues")
	ErrNoOutstandingDues      = errors.New("reseller has no outstanding dues")
	ErrNegativeBalance        = errors.New("reseller balance would become negative")
	ErrReadOnlyField          = errors.New("field is read-only for this transaction type")
	ErrUnknownField           = errors.New("unknown field")
	ErrInvalidFieldValue      = errors.New("invalid field value")
	ErrClearanceNotDuplicable = errors.New("clearance transactions cannot be duplicated")
	ErrEmptySelection         = errors.New("no transactions selected")
	ErrEmptyImport            = errors.New("no rows to import")
	ErrTooManyRows            = errors.New("too many rows in import")

	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
	ErrHistoryBusy   = errors.New("an undo or redo is already in progress")

	ErrResellerNotFound    = errors.New("reseller not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrTransactionNotFound = errors.New("transaction not found")
)

var validationErrors = []error{
	ErrInvalidQuantity,
	ErrInvalidAmount,
	ErrPaidExceedsTotal,
	ErrOverClearance,
	ErrNoOutstandingDues,
	ErrNegativeBalance,
	ErrReadOnlyField,
	ErrUnknownField,
	ErrInvalidFieldValue,
	ErrClearanceNotDuplicable,
	ErrEmptySelection,
	ErrEmptyImport,
	ErrTooManyRows,
}

// IsValidation reports whether err was caused by bad input rather than a
// failing dependency. Validation errors never change ledger state.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err refers to a missing reseller, product or
// transaction.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrResellerNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}
