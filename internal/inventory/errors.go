package inventory

import (
	"errors"
	"fmt"
)

// ErrNotFound: the product or variant has no stock row.
var ErrNotFound = errors.New("product not found")

// ErrContention: the conditional write lost the race on every attempt.
// Transient; the caller should retry the whole checkout.
var ErrContention = errors.New("stock update contention exhausted")

// InsufficientStockError rejects a line that asks for more than the
// remaining positive stock.
type InsufficientStockError struct {
	ProductID string
	SpecKey   string
	Remain    int
	Want      int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s/%s: remain=%d want=%d", e.ProductID, e.SpecKey, e.Remain, e.Want)
}

// BackorderLimitError rejects a line that would push a sold-out counter
// past the back-order ceiling.
type BackorderLimitError struct {
	ProductID string
	SpecKey   string
	Remain    int
	Want      int
}

func (e *BackorderLimitError) Error() string {
	return fmt.Sprintf("back-order limit reached for %s/%s: remain=%d want=%d", e.ProductID, e.SpecKey, e.Remain, e.Want)
}
