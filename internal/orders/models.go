package orders

import "time"

type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	LineID  string `json:"lineId,omitempty"`
	Address string `json:"address,omitempty"`
	Ship    string `json:"ship,omitempty"`
	Pay     string `json:"pay,omitempty"`
	Note    string `json:"note,omitempty"`
}

// LineItem carries the server-trusted price and tag captured at order
// time; both are immutable after the order row is written.
type LineItem struct {
	ProductID string `json:"productId"`
	SpecKey   string `json:"specKey,omitempty"`
	SpecLabel string `json:"specLabel,omitempty"`
	Name      string `json:"name"`
	Price     int    `json:"price"`
	Qty       int    `json:"qty"`
	Tag       string `json:"tag,omitempty"`
}

type Order struct {
	ID          string      `json:"id"`
	PaymentRef  string      `json:"paymentRef"`
	FulfillType FulfillType `json:"fulfillType"`
	Customer    Customer    `json:"customer"`
	Items       []LineItem  `json:"items"`

	Subtotal    int `json:"subtotal"`
	ShippingFee int `json:"shippingFee"`
	TotalAmount int `json:"totalAmount"`

	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Status        Status        `json:"status"`

	// Gateway artifacts, attached after creation.
	BankCode       string `json:"bankCode,omitempty"`
	VirtualAccount string `json:"vAccount,omitempty"`
	AccountExpire  string `json:"vAccountExpire,omitempty"`
	GatewayTxn     string `json:"gatewayTxn,omitempty"`

	PaidAt      *time.Time `json:"paidAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
