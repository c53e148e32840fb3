package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements StockStore over Postgres. Variant writes update
// the variant row and the product aggregate in one data-modifying CTE,
// so the aggregate never diverges from variant totals.
type PGStore struct{ DB *pgxpool.Pool }

func (s *PGStore) Stock(ctx context.Context, productID, specKey string) (int, error) {
	var stock int
	var err error
	if specKey == "" {
		err = s.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
	} else {
		err = s.DB.QueryRow(ctx, `SELECT stock FROM product_variants WHERE product_id = $1 AND spec_key = $2`,
			productID, specKey).Scan(&stock)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return stock, err
}

func (s *PGStore) CompareAndSwap(ctx context.Context, productID, specKey string, old, target int) (bool, error) {
	if specKey == "" {
		ct, err := s.DB.Exec(ctx, `
			UPDATE products SET stock = $3, updated_at = now()
			WHERE id = $1 AND stock = $2`, productID, old, target)
		if err != nil {
			return false, err
		}
		return ct.RowsAffected() == 1, nil
	}

	ct, err := s.DB.Exec(ctx, `
		WITH v AS (
			UPDATE product_variants SET stock = $4
			WHERE product_id = $1 AND spec_key = $2 AND stock = $3
			RETURNING 1
		)
		UPDATE products SET stock = stock - ($3 - $4), updated_at = now()
		WHERE id = $1 AND EXISTS (SELECT 1 FROM v)`,
		productID, specKey, old, target)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (s *PGStore) AddStock(ctx context.Context, productID, specKey string, qty int) error {
	if specKey == "" {
		_, err := s.DB.Exec(ctx, `
			UPDATE products SET stock = stock + $2, updated_at = now()
			WHERE id = $1`, productID, qty)
		return err
	}
	_, err := s.DB.Exec(ctx, `
		WITH v AS (
			UPDATE product_variants SET stock = stock + $3
			WHERE product_id = $1 AND spec_key = $2
			RETURNING 1
		)
		UPDATE products SET stock = stock + $3, updated_at = now()
		WHERE id = $1 AND EXISTS (SELECT 1 FROM v)`,
		productID, specKey, qty)
	return err
}
