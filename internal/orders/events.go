package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated = "OrderCreated"
	EventOrderPaid    = "OrderPaid"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // payment ref
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	PaymentRef  string   `json:"payment_ref"`
	OrderIDs    []string `json:"order_ids"`
	Subtotal    int      `json:"subtotal"`
	ShippingFee int      `json:"shipping_fee"`
	TotalAmount int      `json:"total_amount"`
	Email       string   `json:"email"`
}

type OrderPaidPayload struct {
	PaymentRef  string    `json:"payment_ref"`
	OrderIDs    []string  `json:"order_ids"`
	TotalAmount int       `json:"total_amount"`
	GatewayTxn  string    `json:"gateway_txn"`
	Email       string    `json:"email"`
	PaidAt      time.Time `json:"paid_at"`
}
