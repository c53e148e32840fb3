package checkout

import (
	"errors"
	"fmt"
)

// ErrMissingCustomerField: name, phone or email absent.
var ErrMissingCustomerField = errors.New("customer name, phone and email are required")

// ErrPersistence wraps order-store write failures; details stay in the
// logs, the client only sees a generic retry message.
var ErrPersistence = errors.New("order could not be saved")

// InvalidItemError: unknown product/variant or non-positive quantity.
type InvalidItemError struct {
	ProductID string
	SpecKey   string
	Qty       int
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("invalid cart item %s/%s qty=%d", e.ProductID, e.SpecKey, e.Qty)
}

type InvalidEmailError struct{ Email string }

func (e *InvalidEmailError) Error() string {
	return fmt.Sprintf("invalid email address %q", e.Email)
}
