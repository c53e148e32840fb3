package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// ProductsByIDs loads products plus their variants. Missing ids are
// simply absent from the map; the caller decides whether that is fatal.
func (r *Repo) ProductsByIDs(ctx context.Context, ids []string) (map[string]*Product, error) {
	if len(ids) == 0 {
		return map[string]*Product{}, nil
	}

	args := make([]any, 0, len(ids))
	params := ""
	for i, id := range ids {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}

	rows, err := r.DB.Query(ctx, `SELECT id, name, price, price_note, tag, stock, created_at, updated_at
	                              FROM products WHERE id IN (`+params+`)`, args...)
	if err != nil {
		return nil, err
	}
	out := map[string]*Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.PriceNote, &p.Tag, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		out[p.ID] = &p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	vrows, err := r.DB.Query(ctx, `SELECT product_id, spec_key, spec_label, stock
	                               FROM product_variants WHERE product_id IN (`+params+`)
	                               ORDER BY spec_key`, args...)
	if err != nil {
		return nil, err
	}
	defer vrows.Close()
	for vrows.Next() {
		var pid string
		var v Variant
		if err := vrows.Scan(&pid, &v.SpecKey, &v.SpecLabel, &v.Stock); err != nil {
			return nil, err
		}
		if p, ok := out[pid]; ok {
			p.Variants = append(p.Variants, v)
		}
	}
	return out, vrows.Err()
}

// State is the admin/product-state view: price, note, tag and the
// per-variant stock map for every product.
type State struct {
	Price     int            `json:"price"`
	PriceNote string         `json:"priceNote"`
	Tag       string         `json:"tag,omitempty"`
	Stocks    map[string]int `json:"stocks"`
}

func (r *Repo) AllState(ctx context.Context) (map[string]State, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, price, price_note, tag, stock FROM products`)
	if err != nil {
		return nil, err
	}
	out := map[string]State{}
	for rows.Next() {
		var id, note, tag string
		var price, stock int
		if err := rows.Scan(&id, &price, &note, &tag, &stock); err != nil {
			rows.Close()
			return nil, err
		}
		out[id] = State{Price: price, PriceNote: note, Tag: tag, Stocks: map[string]int{}}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	vrows, err := r.DB.Query(ctx, `SELECT product_id, spec_key, stock FROM product_variants`)
	if err != nil {
		return nil, err
	}
	defer vrows.Close()
	for vrows.Next() {
		var pid, key string
		var stock int
		if err := vrows.Scan(&pid, &key, &stock); err != nil {
			return nil, err
		}
		if st, ok := out[pid]; ok {
			st.Stocks[key] = stock
		}
	}
	return out, vrows.Err()
}

// StateInput re-seeds one product: price, note, tag and the full stock
// map keyed by spec key (spec label defaults to the key when new).
type StateInput struct {
	Name      string         `json:"name"`
	Price     int            `json:"price"`
	PriceNote string         `json:"priceNote"`
	Tag       string         `json:"tag"`
	Stocks    map[string]int `json:"stocks"`
}

// UpsertState replaces a product's price and, when a stock map is
// given, its variant stocks. The product aggregate is re-initialized to
// the sum of variant stocks so the two counters start out consistent; a
// nil map leaves stock counters alone.
func (r *Repo) UpsertState(ctx context.Context, productID string, in StateInput) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	reseed := in.Stocks != nil
	total := 0
	for _, s := range in.Stocks {
		total += s
	}
	name := in.Name
	if name == "" {
		name = productID
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO products (id, name, price, price_note, tag, stock)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE products.name END,
			price = EXCLUDED.price,
			price_note = EXCLUDED.price_note,
			tag = EXCLUDED.tag,
			stock = CASE WHEN $7 THEN EXCLUDED.stock ELSE products.stock END,
			updated_at = now()
	`, productID, name, in.Price, in.PriceNote, in.Tag, total, reseed); err != nil {
		return err
	}
	if !reseed {
		return tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM product_variants WHERE product_id = $1`, productID); err != nil {
		return err
	}
	for key, stock := range in.Stocks {
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_variants (product_id, spec_key, spec_label, stock)
			VALUES ($1, $2, $2, $3)
		`, productID, key, stock); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
