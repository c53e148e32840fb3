package inventory

import "context"

// StockStore is the single-row conditional-update surface the engine
// needs from the order store. specKey is empty for products without
// variants.
type StockStore interface {
	// Stock returns the current signed counter. ErrNotFound when the
	// product/variant does not exist.
	Stock(ctx context.Context, productID, specKey string) (int, error)

	// CompareAndSwap writes target only if the stored value still
	// equals old. Returns false (and no error) on a lost race.
	CompareAndSwap(ctx context.Context, productID, specKey string, old, target int) (bool, error)

	// AddStock applies a relative increment, used to release committed
	// reservations when a later step fails.
	AddStock(ctx context.Context, productID, specKey string, qty int) error
}
