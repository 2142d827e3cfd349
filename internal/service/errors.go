package service

import (
	"errors"
	"fmt"

	"storefront/internal/store"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrProductNotFound    = errors.New("product not found")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderNotDelivered  = errors.New("only delivered orders can be deleted")
	ErrCheckoutInProgress = errors.New("checkout already in progress for this cart")
	ErrMissingField       = errors.New("missing required field")
	ErrVendorNotFound     = errors.New("vendor not found")
	ErrInvalidAmount      = errors.New("amount must be positive")
)

// InsufficientStockError is returned through ErrInsufficientStock and can be
// unwrapped with errors.As for the product and counts.
type InsufficientStockError = store.InsufficientStockError

// IsValidationError reports whether err is a caller mistake rather than a
// failure of the service.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrEmptyCart, ErrInvalidQuantity, ErrInsufficientStock,
		ErrInvalidStatus, ErrMissingField, ErrInvalidAmount,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err means a referenced entity does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrVendorNotFound) ||
		errors.Is(err, store.ErrNotFound)
}

func missingField(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, name)
}

// mapNotFound replaces a repository not-found error with sentinel
func mapNotFound(err, sentinel error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", sentinel, err)
	}
	return err
}
