package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const orderCols = `id, payment_ref, fulfill_type,
	customer_name, phone, email, line_id, address, ship, pay, note,
	subtotal, shipping_fee, total_amount, payment_status, status,
	bank_code, v_account, v_account_expire, gateway_txn,
	paid_at, completed_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.PaymentRef, &o.FulfillType,
		&o.Customer.Name, &o.Customer.Phone, &o.Customer.Email,
		&o.Customer.LineID, &o.Customer.Address, &o.Customer.Ship,
		&o.Customer.Pay, &o.Customer.Note,
		&o.Subtotal, &o.ShippingFee, &o.TotalAmount, &o.PaymentStatus, &o.Status,
		&o.BankCode, &o.VirtualAccount, &o.AccountExpire, &o.GatewayTxn,
		&o.PaidAt, &o.CompletedAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// LastIDForDay returns the highest order id with the given date prefix,
// or "" when today has no orders yet.
func (r *Repo) LastIDForDay(ctx context.Context, dayPrefix string) (string, error) {
	var id string
	err := r.DB.QueryRow(ctx,
		`SELECT id FROM orders WHERE id LIKE $1 || '%' ORDER BY id DESC LIMIT 1`,
		dayPrefix).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return id, err
}

// InsertAll writes the split orders of one checkout in a single
// transaction. Order rows are append-only; amounts and items never
// change after this point.
func (r *Repo) InsertAll(ctx context.Context, list []*Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, o := range list {
		if _, err := tx.Exec(ctx, `
			INSERT INTO orders (id, payment_ref, fulfill_type,
				customer_name, phone, email, line_id, address, ship, pay, note,
				subtotal, shipping_fee, total_amount, payment_status, status,
				created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$17)`,
			o.ID, o.PaymentRef, o.FulfillType,
			o.Customer.Name, o.Customer.Phone, o.Customer.Email,
			o.Customer.LineID, o.Customer.Address, o.Customer.Ship,
			o.Customer.Pay, o.Customer.Note,
			o.Subtotal, o.ShippingFee, o.TotalAmount, o.PaymentStatus, o.Status,
			o.CreatedAt); err != nil {
			return err
		}
		for _, it := range o.Items {
			if _, err := tx.Exec(ctx, `
				INSERT INTO order_items (order_id, product_id, spec_key, spec_label, name, price, qty, tag)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
				o.ID, it.ProductID, it.SpecKey, it.SpecLabel, it.Name, it.Price, it.Qty, it.Tag); err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) loadItems(ctx context.Context, list []*Order) error {
	byID := make(map[string]*Order, len(list))
	args := make([]any, 0, len(list))
	params := ""
	for i, o := range list {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		args = append(args, o.ID)
		byID[o.ID] = o
	}

	rows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, spec_key, spec_label, name, price, qty, tag
		FROM order_items WHERE order_id IN (`+params+`) ORDER BY id`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var oid string
		var it LineItem
		if err := rows.Scan(&oid, &it.ProductID, &it.SpecKey, &it.SpecLabel, &it.Name, &it.Price, &it.Qty, &it.Tag); err != nil {
			return err
		}
		if o, ok := byID[oid]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

// ByRef returns every order sharing one payment ref, items included,
// in creation order (the primary order first).
func (r *Repo) ByRef(ctx context.Context, ref string) ([]*Order, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+orderCols+` FROM orders WHERE payment_ref = $1 ORDER BY id`, ref)
	if err != nil {
		return nil, err
	}
	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	return out, r.loadItems(ctx, out)
}

func (r *Repo) ListAll(ctx context.Context) ([]*Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderCols+` FROM orders ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	return out, r.loadItems(ctx, out)
}

// UpdateStatus flips fulfillment status; completed_at is set when the
// order completes and cleared otherwise. Returns false when the id is
// unknown or the transition is not allowed.
func (r *Repo) UpdateStatus(ctx context.Context, id string, to Status, now time.Time) (bool, error) {
	var from Status
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !CanTransition(from, to) {
		return false, nil
	}

	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status = $2,
			completed_at = CASE WHEN $2 = 'completed' THEN $3 ELSE NULL END,
			updated_at = $3
		WHERE id = $1 AND status = $4`, id, to, now, from)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// MarkPaid flips every order of the ref to paid and records the gateway
// transaction. The payment_status guard makes replays a no-op; the
// returned count is 0 on replay or unknown ref.
func (r *Repo) MarkPaid(ctx context.Context, ref, gatewayTxn string, paidAt time.Time) (int64, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_status = 'paid', paid_at = $2, gateway_txn = $3, updated_at = $2
		WHERE payment_ref = $1 AND payment_status <> 'paid'`, ref, paidAt, gatewayTxn)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// AttachPaymentInfo stores ATM virtual-account details on every order
// of the ref and moves unpaid orders to pending.
func (r *Repo) AttachPaymentInfo(ctx context.Context, ref, bankCode, vAccount, expire string) (int64, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET bank_code = $2, v_account = $3, v_account_expire = $4,
			payment_status = CASE WHEN payment_status = 'unpaid' THEN 'pending' ELSE payment_status END,
			updated_at = now()
		WHERE payment_ref = $1`, ref, bankCode, vAccount, expire)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// ClaimPaidNotice claims the at-most-once notification slot for a ref.
// True means this caller owns the side effects.
func (r *Repo) ClaimPaidNotice(ctx context.Context, ref string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO payment_notices (payment_ref) VALUES ($1)
		ON CONFLICT (payment_ref) DO NOTHING`, ref)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
