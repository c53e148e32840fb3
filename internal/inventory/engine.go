package inventory

import (
	"context"

	"github.com/sirupsen/logrus"
)

// DefaultAttempts bounds the read/compare-and-swap loop per line.
const DefaultAttempts = 3

// DefaultBackorderCap is the number of units that may be sold past
// physical stock depletion (tracked as a negative counter).
const DefaultBackorderCap = 20

type Line struct {
	ProductID string
	SpecKey   string
	Qty       int
}

// Engine turns validated (product/variant, qty) pairs into committed
// stock decrements. Each decrement is one conditional write; no locks
// are held between attempts.
type Engine struct {
	Store    StockStore
	Log      *logrus.Logger
	Cap      int // back-order ceiling, DefaultBackorderCap when 0
	Attempts int // CAS attempts per line, DefaultAttempts when 0
}

func (e *Engine) ceiling() int {
	if e.Cap > 0 {
		return e.Cap
	}
	return DefaultBackorderCap
}

func (e *Engine) attempts() int {
	if e.Attempts > 0 {
		return e.Attempts
	}
	return DefaultAttempts
}

// Reserve decrements stock line by line, in cart order. On failure it
// returns the lines already committed so the caller can release them;
// the failing line itself leaves no partial state.
func (e *Engine) Reserve(ctx context.Context, lines []Line) (committed []Line, err error) {
	for _, l := range lines {
		if err := e.reserveOne(ctx, l); err != nil {
			return committed, err
		}
		committed = append(committed, l)
	}
	return committed, nil
}

func (e *Engine) reserveOne(ctx context.Context, l Line) error {
	for attempt := 0; attempt < e.attempts(); attempt++ {
		s, err := e.Store.Stock(ctx, l.ProductID, l.SpecKey)
		if err != nil {
			return err
		}

		var target int
		if s > 0 {
			if s < l.Qty {
				return &InsufficientStockError{ProductID: l.ProductID, SpecKey: l.SpecKey, Remain: s, Want: l.Qty}
			}
			target = s - l.Qty
		} else {
			// Already sold out: |s| units are promised under
			// back-order, the cap limits how far we go.
			remain := e.ceiling() + s
			if l.Qty > remain {
				return &BackorderLimitError{ProductID: l.ProductID, SpecKey: l.SpecKey, Remain: remain, Want: l.Qty}
			}
			target = s - l.Qty
		}

		ok, err := e.Store.CompareAndSwap(ctx, l.ProductID, l.SpecKey, s, target)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		// lost the race, re-read and try again
	}

	e.Log.WithFields(logrus.Fields{
		"product_id": l.ProductID,
		"spec_key":   l.SpecKey,
		"qty":        l.Qty,
	}).Warn("stock reservation gave up after repeated races")
	return ErrContention
}

// Release puts committed quantities back. Best effort: failures are
// logged with enough context for manual reconciliation.
func (e *Engine) Release(ctx context.Context, lines []Line) {
	for _, l := range lines {
		if err := e.Store.AddStock(ctx, l.ProductID, l.SpecKey, l.Qty); err != nil {
			e.Log.WithFields(logrus.Fields{
				"product_id": l.ProductID,
				"spec_key":   l.SpecKey,
				"qty":        l.Qty,
			}).WithError(err).Error("stock release failed, reconcile manually")
		}
	}
}
