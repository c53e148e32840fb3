package checkout

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanxiaozi/fulfillment/internal/catalog"
	"github.com/sanxiaozi/fulfillment/internal/inventory"
	"github.com/sanxiaozi/fulfillment/internal/orders"
)

type fakeCatalog struct{ products map[string]*catalog.Product }

func (f *fakeCatalog) ProductsByIDs(ctx context.Context, ids []string) (map[string]*catalog.Product, error) {
	out := map[string]*catalog.Product{}
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeOrderStore struct {
	lastID    string
	inserted  []*orders.Order
	insertErr error
}

func (f *fakeOrderStore) LastIDForDay(ctx context.Context, dayPrefix string) (string, error) {
	return f.lastID, nil
}

func (f *fakeOrderStore) InsertAll(ctx context.Context, list []*orders.Order) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, list...)
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (f *fakePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, value)
}

type memStock struct {
	mu    sync.Mutex
	stock map[string]int
}

func (m *memStock) key(p, s string) string { return p + "/" + s }

func (m *memStock) Stock(ctx context.Context, productID, specKey string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stock[m.key(productID, specKey)]
	if !ok {
		return 0, inventory.ErrNotFound
	}
	return s, nil
}

func (m *memStock) CompareAndSwap(ctx context.Context, productID, specKey string, old, target int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(productID, specKey)
	if m.stock[k] != old {
		return false, nil
	}
	m.stock[k] = target
	return true, nil
}

func (m *memStock) AddStock(ctx context.Context, productID, specKey string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[m.key(productID, specKey)] += qty
	return nil
}

func testService(t *testing.T, stock map[string]int, products map[string]*catalog.Product) (*Service, *fakeOrderStore, *memStock, *fakePublisher) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	st := &memStock{stock: stock}
	store := &fakeOrderStore{}
	pub := &fakePublisher{}
	svc := &Service{
		Catalog:           &fakeCatalog{products: products},
		Orders:            store,
		Engine:            &inventory.Engine{Store: st, Log: log, Cap: 20},
		Producer:          pub,
		Log:               log,
		ServiceName:       "test-api",
		IDPrefix:          "ND",
		LeadTimeTag:       "preorder",
		GatewayName:       "ecpay",
		FreeShipThreshold: 699,
		ShipFeeHome:       100,
		ShipFeeCVS:        60,
		Now:               func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) },
	}
	return svc, store, st, pub
}

func twoTagProducts() map[string]*catalog.Product {
	return map[string]*catalog.Product{
		"mug":   {ID: "mug", Name: "Mug", Price: 150, Tag: ""},
		"plush": {ID: "plush", Name: "Plush", Price: 300, Tag: "preorder"},
	}
}

func validCustomer() Customer {
	return Customer{Name: "Mei", Phone: "0912345678", Email: "mei@example.com", Ship: "711", Pay: "atm"}
}

func TestCheckoutSplitsMixedCartIntoTwoOrders(t *testing.T) {
	svc, store, _, _ := testService(t,
		map[string]int{"mug/": 10, "plush/": 10}, twoTagProducts())

	res, err := svc.Checkout(context.Background(), validCustomer(), []CartLine{
		{ProductID: "mug", Qty: 1},
		{ProductID: "plush", Qty: 1},
	})
	require.NoError(t, err)
	require.Len(t, res.Orders, 2)

	first, second := res.Orders[0], res.Orders[1]
	assert.Equal(t, "ND202501010001", first.ID)
	assert.Equal(t, "ND202501010002", second.ID)
	assert.Equal(t, first.ID, res.PaymentRef)
	assert.Equal(t, res.PaymentRef, first.PaymentRef)
	assert.Equal(t, res.PaymentRef, second.PaymentRef)

	assert.Equal(t, orders.FulfillImmediate, first.FulfillType)
	assert.Equal(t, orders.FulfillLeadTime, second.FulfillType)

	// subtotal 450 < 699: cvs fee 60 on the primary order only
	assert.Equal(t, 60, first.ShippingFee)
	assert.Equal(t, 0, second.ShippingFee)
	assert.Equal(t, 150+60, first.TotalAmount)
	assert.Equal(t, 300, second.TotalAmount)
	assert.Equal(t, 450, res.Subtotal)
	assert.Equal(t, 510, res.TotalAmount)
	assert.Len(t, store.inserted, 2)
}

func TestCheckoutLeadTimeOnlyCartCarriesFee(t *testing.T) {
	svc, _, _, _ := testService(t, map[string]int{"plush/": 5}, twoTagProducts())

	res, err := svc.Checkout(context.Background(), validCustomer(), []CartLine{
		{ProductID: "plush", Qty: 1},
	})
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	assert.Equal(t, orders.FulfillLeadTime, res.Orders[0].FulfillType)
	assert.Equal(t, 60, res.Orders[0].ShippingFee)
}

func TestCheckoutFreeShippingAboveThreshold(t *testing.T) {
	svc, _, _, _ := testService(t, map[string]int{"plush/": 5}, twoTagProducts())

	// 300 * 3 = 900 >= 699
	res, err := svc.Checkout(context.Background(), validCustomer(), []CartLine{
		{ProductID: "plush", Qty: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ShippingFee)
	assert.Equal(t, 900, res.TotalAmount)
}

func TestCheckoutHomeDeliveryFee(t *testing.T) {
	svc, _, _, _ := testService(t, map[string]int{"mug/": 5}, twoTagProducts())

	cust := validCustomer()
	cust.Ship = "home"
	res, err := svc.Checkout(context.Background(), cust, []CartLine{
		{ProductID: "mug", Qty: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 100, res.ShippingFee)
}

func TestCheckoutUsesCatalogPriceNotClientPrice(t *testing.T) {
	svc, store, _, _ := testService(t, map[string]int{"mug/": 5}, twoTagProducts())

	res, err := svc.Checkout(context.Background(), validCustomer(), []CartLine{
		{ProductID: "mug", Qty: 2},
	})
	require.NoError(t, err)
	require.Len(t, store.inserted, 1)
	item := store.inserted[0].Items[0]
	assert.Equal(t, 150, item.Price)
	assert.Equal(t, "Mug", item.Name)
	assert.Equal(t, 300, res.Subtotal)
}

func TestCheckoutRejectsUnknownProduct(t *testing.T) {
	svc, _, _, _ := testService(t, map[string]int{}, twoTagProducts())

	_, err := svc.Checkout(context.Background(), validCustomer(), []CartLine{
		{ProductID: "ghost", Qty: 1},
	})
	var bad *InvalidItemError
	require.ErrorAs(t, err, &bad)
}

func TestCheckoutRejectsNonPositiveQty(t *testing.T) {
	svc, _, _, _ := testService(t, map[string]int{"mug/": 5}, twoTagProducts())

	_, err := svc.Checkout(context.Background(), validCustomer(), []CartLine{
		{ProductID: "mug", Qty: 0},
	})
	var bad *InvalidItemError
	require.ErrorAs(t, err, &bad)
}

func TestCheckoutRejectsMissingCustomerFields(t *testing.T) {
	svc, _, _, _ := testService(t, map[string]int{"mug/": 5}, twoTagProducts())

	cust := validCustomer()
	cust.Phone = ""
	_, err := svc.Checkout(context.Background(), cust, []CartLine{{ProductID: "mug", Qty: 1}})
	require.ErrorIs(t, err, ErrMissingCustomerField)
}

func TestCheckoutRejectsBadEmail(t *testing.T) {
	svc, _, _, _ := testService(t, map[string]int{"mug/": 5}, twoTagProducts())

	for _, email := range []string{"nope", "a@", "@b", "a@@b"} {
		cust := validCustomer()
		cust.Email = email
		_, err := svc.Checkout(context.Background(), cust, []CartLine{{ProductID: "mug", Qty: 1}})
		var bad *InvalidEmailError
		require.ErrorAs(t, err, &bad, "email %q", email)
	}
}

func TestCheckoutReleasesStockWhenLaterLineFails(t *testing.T) {
	svc, _, st, _ := testService(t,
		map[string]int{"mug/": 10, "plush/": 0}, twoTagProducts())

	// plush at 0 with cap 20 still works; push it past the cap
	_, err := svc.Checkout(context.Background(), validCustomer(), []CartLine{
		{ProductID: "mug", Qty: 2},
		{ProductID: "plush", Qty: 21},
	})
	var limit *inventory.BackorderLimitError
	require.ErrorAs(t, err, &limit)

	// the committed mug decrement was rolled back
	s, _ := st.Stock(context.Background(), "mug", "")
	assert.Equal(t, 10, s)
}

func TestCheckoutReleasesStockWhenInsertFails(t *testing.T) {
	svc, store, st, _ := testService(t, map[string]int{"mug/": 10}, twoTagProducts())
	store.insertErr = errors.New("connection lost")

	_, err := svc.Checkout(context.Background(), validCustomer(), []CartLine{
		{ProductID: "mug", Qty: 4},
	})
	require.ErrorIs(t, err, ErrPersistence)

	s, _ := st.Stock(context.Background(), "mug", "")
	assert.Equal(t, 10, s)
}

func TestCheckoutPublishesCreatedEvent(t *testing.T) {
	svc, _, _, pub := testService(t, map[string]int{"mug/": 5}, twoTagProducts())

	_, err := svc.Checkout(context.Background(), validCustomer(), []CartLine{
		{ProductID: "mug", Qty: 1},
	})
	require.NoError(t, err)
	assert.Len(t, pub.msgs, 1)
}

func TestCheckoutRedirectURLPerPaymentChoice(t *testing.T) {
	tests := []struct {
		pay  string
		want string
	}{
		{"atm", "/pay/ecpay?ref=ND202501010001&pm=ATM"},
		{"credit", "/pay/ecpay?ref=ND202501010001&pm=Credit"},
		{"gateway", "/pay/ecpay?ref=ND202501010001&pm=ALL"},
		{"cod", ""},
	}
	for _, tt := range tests {
		svc, _, _, _ := testService(t, map[string]int{"mug/": 50}, twoTagProducts())
		cust := validCustomer()
		cust.Pay = tt.pay
		res, err := svc.Checkout(context.Background(), cust, []CartLine{{ProductID: "mug", Qty: 1}})
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.RedirectURL, "pay=%s", tt.pay)
	}
}

func TestCheckoutVariantLineUsesVariantStock(t *testing.T) {
	products := map[string]*catalog.Product{
		"tote": {ID: "tote", Name: "Tote", Price: 250, Variants: []catalog.Variant{
			{SpecKey: "usagi", SpecLabel: "Usagi", Stock: 3},
			{SpecKey: "kuri", SpecLabel: "Kuri", Stock: 0},
		}},
	}
	svc, store, st, _ := testService(t, map[string]int{"tote/usagi": 3, "tote/kuri": 0}, products)

	res, err := svc.Checkout(context.Background(), validCustomer(), []CartLine{
		{ProductID: "tote", SpecKey: "usagi", Qty: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "Usagi", store.inserted[0].Items[0].SpecLabel)
	assert.Equal(t, 500, res.Subtotal)

	s, _ := st.Stock(context.Background(), "tote", "usagi")
	assert.Equal(t, 1, s)

	// unknown spec key is an invalid item
	_, err = svc.Checkout(context.Background(), validCustomer(), []CartLine{
		{ProductID: "tote", SpecKey: "nope", Qty: 1},
	})
	var bad *InvalidItemError
	require.ErrorAs(t, err, &bad)
}
