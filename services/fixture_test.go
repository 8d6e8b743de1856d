package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storefront-backend/apperr"
	"storefront-backend/cache"
	"storefront-backend/events"
	"storefront-backend/mailer"
	"storefront-backend/models"
	"storefront-backend/refs"
	"storefront-backend/testutil"
)

type fixture struct {
	db       *gorm.DB
	now      time.Time
	mail     *mailer.Mock
	bus      *events.Bus
	products *cache.Store[string, models.Product]
	delivery *DeliveryService
	recalc   *InvoiceRecalculator
	checkout *CheckoutService
	orders   *OrderService
	statuses *events.Broadcaster
	invoices *InvoiceService
	reviews  *ReviewService
	catalog  *CatalogService
	content  *ContentService
	users    *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gen, err := refs.NewGenerator(1)
	require.NoError(t, err)

	f := &fixture{
		db:       testutil.NewDB(t),
		now:      time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		mail:     &mailer.Mock{},
		bus:      events.NewBus(),
		products: cache.New[string, models.Product](),
		statuses: events.NewBroadcaster(),
	}
	clock := func() time.Time { return f.now }

	f.delivery = NewDeliveryService(cache.New[uint, models.DeliverySettings]())
	f.recalc = NewInvoiceRecalculator()
	f.recalc.Register(f.bus)
	f.checkout = NewCheckoutService(gen, f.delivery, f.recalc, f.mail).WithClock(clock)
	f.orders = NewOrderService(f.delivery, f.bus, f.statuses, f.recalc).WithClock(clock)
	f.invoices = NewInvoiceService(f.recalc)
	f.invoices.now = clock
	f.reviews = NewReviewService(f.products)
	f.catalog = NewCatalogService(f.products)
	f.content = NewContentService().WithClock(clock)
	f.users = NewUserService()
	return f
}

func (f *fixture) request(productID string, price int64, qty int, delivery any, method models.PaymentMethod) CheckoutRequest {
	return CheckoutRequest{
		Name:            "Ada Lovelace",
		Email:           "ada@example.com",
		Phone:           "0912345678",
		ShippingAddress: &models.LocalizedText{EN: "1 Main St", ZhTW: "主街1號"},
		CartItems:       []CartItemInput{{ID: productID, Quantity: qty, Price: decimal.NewFromInt(price)}},
		DeliveryMethod:  delivery,
		PaymentMethod:   method,
	}
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func requireKind(t *testing.T, err error, kind apperr.Kind) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok, "expected *apperr.Error, got %T: %v", err, err)
	require.Equal(t, kind, ae.Kind, ae.Error())
	return ae
}

func assertMoney(t *testing.T, want int64, got decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, got.Equal(decimal.NewFromInt(want)), "%s: want %d, got %s", msg, want, got)
}
