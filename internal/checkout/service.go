package checkout

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/sanxiaozi/fulfillment/internal/catalog"
	"github.com/sanxiaozi/fulfillment/internal/inventory"
	kafkax "github.com/sanxiaozi/fulfillment/internal/kafka"
	"github.com/sanxiaozi/fulfillment/internal/orders"
)

// Catalog is the read-only product lookup the normalizer needs.
type Catalog interface {
	ProductsByIDs(ctx context.Context, ids []string) (map[string]*catalog.Product, error)
}

// OrderStore is the slice of the order repo checkout writes through.
type OrderStore interface {
	LastIDForDay(ctx context.Context, dayPrefix string) (string, error)
	InsertAll(ctx context.Context, list []*orders.Order) error
}

// Publisher matches the async kafka producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Catalog  Catalog
	Orders   OrderStore
	Engine   *inventory.Engine
	Producer Publisher
	Log      *logrus.Logger

	ServiceName string
	IDPrefix    string
	LeadTimeTag string
	GatewayName string

	FreeShipThreshold int
	ShipFeeHome       int
	ShipFeeCVS        int

	Now func() time.Time // defaults to time.Now
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type Result struct {
	PaymentRef  string
	Orders      []*orders.Order
	Subtotal    int
	ShippingFee int
	TotalAmount int
	RedirectURL string // empty when the chosen method needs no gateway
}

// Checkout runs the full pipeline: normalize -> reserve -> split ->
// persist -> publish. Stock committed before a failure is released
// again; the release is best effort and logged.
func (s *Service) Checkout(ctx context.Context, cust Customer, lines []CartLine) (*Result, error) {
	if err := validateCustomer(cust); err != nil {
		return nil, err
	}
	items, err := s.normalize(ctx, lines)
	if err != nil {
		return nil, err
	}

	reserve := make([]inventory.Line, 0, len(items))
	for _, it := range items {
		reserve = append(reserve, inventory.Line{ProductID: it.ProductID, SpecKey: it.SpecKey, Qty: it.Qty})
	}
	committed, err := s.Engine.Reserve(ctx, reserve)
	if err != nil {
		s.Engine.Release(ctx, committed)
		return nil, err
	}

	res, err := s.persist(ctx, cust, items)
	if err != nil {
		s.Engine.Release(ctx, committed)
		s.Log.WithFields(logrus.Fields{"payment_ref": res.PaymentRef}).
			WithError(err).Error("order insert failed after reservation, stock released")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.publishCreated(ctx, res, cust.Email)
	res.RedirectURL = s.redirectURL(res.PaymentRef, cust.Pay)
	return res, nil
}

func (s *Service) persist(ctx context.Context, cust Customer, items []orders.LineItem) (*Result, error) {
	now := s.now()
	immediate, lead := splitByTag(items, s.LeadTimeTag)

	cartSubtotal := subtotal(items)
	fee := s.shippingFee(cartSubtotal, cust.Ship)

	lastID, err := s.Orders.LastIDForDay(ctx, orders.DayPrefix(s.IDPrefix, now))
	if err != nil {
		return &Result{}, err
	}

	type group struct {
		items []orders.LineItem
		ftype orders.FulfillType
	}
	var groups []group
	if len(immediate) > 0 {
		groups = append(groups, group{immediate, orders.FulfillImmediate})
	}
	if len(lead) > 0 {
		groups = append(groups, group{lead, orders.FulfillLeadTime})
	}

	res := &Result{Subtotal: cartSubtotal, ShippingFee: fee}
	id := lastID
	for i, g := range groups {
		id = orders.NextID(s.IDPrefix, now, id)
		if i == 0 {
			res.PaymentRef = id
		}
		groupFee := 0
		if i == 0 { // the primary group carries the shipping fee
			groupFee = fee
		}
		sub := subtotal(g.items)
		res.Orders = append(res.Orders, &orders.Order{
			ID:            id,
			PaymentRef:    res.PaymentRef,
			FulfillType:   g.ftype,
			Customer:      orders.Customer(cust),
			Items:         g.items,
			Subtotal:      sub,
			ShippingFee:   groupFee,
			TotalAmount:   sub + groupFee,
			PaymentStatus: orders.PaymentUnpaid,
			Status:        orders.StatusNew,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	res.TotalAmount = cartSubtotal + fee

	if err := s.Orders.InsertAll(ctx, res.Orders); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Service) publishCreated(ctx context.Context, res *Result, email string) {
	if s.Producer == nil {
		return
	}
	ids := make([]string, 0, len(res.Orders))
	for _, o := range res.Orders {
		ids = append(ids, o.ID)
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    s.now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: res.PaymentRef,
		Payload: kafkax.MustMarshal(orders.OrderCreatedPayload{
			PaymentRef:  res.PaymentRef,
			OrderIDs:    ids,
			Subtotal:    res.Subtotal,
			ShippingFee: res.ShippingFee,
			TotalAmount: res.TotalAmount,
			Email:       email,
		}),
	}
	s.Producer.Publish(orders.PartitionKey(res.PaymentRef), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// redirectURL maps the customer's payment choice to a gateway redirect.
// Methods settled outside the gateway (cod, bank transfer) get none.
func (s *Service) redirectURL(ref, pay string) string {
	var pm string
	switch pay {
	case "atm":
		pm = "ATM"
	case "credit":
		pm = "Credit"
	case "gateway":
		pm = "ALL"
	default:
		return ""
	}
	return fmt.Sprintf("/pay/%s?ref=%s&pm=%s", s.GatewayName, url.QueryEscape(ref), pm)
}
