package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-backend/apperr"
	"storefront-backend/models"
	"storefront-backend/testutil"
)

func TestCheckout_FreeDeliveryAtThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.User(t, f.db, "ada@example.com")
	p := testutil.Product(t, f.db, "tea", 100)
	testutil.DeliverySettings(t, f.db, 150, 20)

	res, err := f.checkout.Checkout(ctx, f.db, user.ID, f.request(p.ID, 100, 2, float64(0), models.PaymentOnline))
	require.NoError(t, err)

	var order models.Order
	require.NoError(t, f.db.Preload("Items").First(&order, "id = ?", res.OrderID).Error)
	assertMoney(t, 200, order.Subtotal, "subtotal")
	assertMoney(t, 0, order.DeliveryCost, "deliveryCost")
	assertMoney(t, 200, order.Total, "total")
	assert.True(t, order.Total.Equal(order.Subtotal.Add(order.DeliveryCost)))
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, models.OrderTypeOneTime, order.OrderType)
	assert.Equal(t, res.InvoiceNumber, order.InvoiceNumber)
	assert.Regexp(t, `^INV-20261019-\d{4}$`, order.InvoiceNumber)
	assert.Regexp(t, `^ORD-[0-9A-Z]+$`, order.OrderReference)
	assert.Equal(t, "Method 0", order.DeliverySnapshot.Data().Name.EN)
	require.Len(t, order.Items, 1)

	var inv models.Invoice
	require.NoError(t, f.db.Preload("Orders").Preload("Items").First(&inv, "invoice_number = ?", res.InvoiceNumber).Error)
	assert.Equal(t, models.InvoiceOneTime, inv.InvoiceType)
	assert.Equal(t, models.InvoicePending, inv.Status)
	assertMoney(t, 200, inv.Amount, "invoice amount")
	require.Len(t, inv.Orders, 1)
	assert.Equal(t, order.ID, inv.Orders[0].ID)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, order.ID, inv.Items[0].OrderID)
}

func TestCheckout_DeliveryChargedBelowThreshold(t *testing.T) {
	f := newFixture(t)
	user := testutil.User(t, f.db, "ada@example.com")
	p := testutil.Product(t, f.db, "tea", 100)
	testutil.DeliverySettings(t, f.db, 500, 20)

	res, err := f.checkout.Checkout(context.Background(), f.db, user.ID, f.request(p.ID, 100, 2, "0", models.PaymentOnline))
	require.NoError(t, err)

	var order models.Order
	require.NoError(t, f.db.First(&order, "id = ?", res.OrderID).Error)
	assertMoney(t, 200, order.Subtotal, "subtotal")
	assertMoney(t, 20, order.DeliveryCost, "deliveryCost")
	assertMoney(t, 220, order.Total, "total")
}

func TestCheckout_OfflineAwaitsVerification(t *testing.T) {
	f := newFixture(t)
	user := testutil.User(t, f.db, "ada@example.com")
	p := testutil.Product(t, f.db, "tea", 100)
	testutil.DeliverySettings(t, f.db, 500, 20)

	req := f.request(p.ID, 100, 1, float64(0), models.PaymentOffline)
	req.PaymentProofURL = "https://files.example.com/proof.png"
	req.PaymentReference = "TX-1"
	req.PaymentDate = &f.now

	res, err := f.checkout.Checkout(context.Background(), f.db, user.ID, req)
	require.NoError(t, err)

	var order models.Order
	require.NoError(t, f.db.First(&order, "id = ?", res.OrderID).Error)
	assert.Equal(t, models.OrderPendingPaymentVerification, order.Status)
	assert.Equal(t, "https://files.example.com/proof.png", order.PaymentProofURL)
	assert.Equal(t, "TX-1", order.PaymentReference)
	require.NotNil(t, order.PaymentDate)

	var inv models.Invoice
	require.NoError(t, f.db.First(&inv, "invoice_number = ?", res.InvoiceNumber).Error)
	assert.Equal(t, models.InvoicePendingPaymentVerification, inv.Status)
}

func TestCheckout_InvalidDeliveryMethod(t *testing.T) {
	cases := []struct {
		name  string
		raw   any
		field string
	}{
		{"out of bounds", float64(3), "isOutOfBounds"},
		{"negative", float64(-1), "isNegative"},
		{"not a number", "express", "isNaN"},
		{"fractional", 0.5, "isOutOfBounds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			user := testutil.User(t, f.db, "ada@example.com")
			p := testutil.Product(t, f.db, "tea", 100)
			testutil.DeliverySettings(t, f.db, 500, 20, 40)

			_, err := f.checkout.Checkout(context.Background(), f.db, user.ID, f.request(p.ID, 100, 1, tc.raw, models.PaymentOnline))
			ae := requireKind(t, err, apperr.Invalid)

			validation, ok := ae.Details["validation"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, true, validation[tc.field])
			assert.Equal(t, 2, validation["availableMethods"])
			assert.Equal(t, tc.raw, ae.Details["deliveryMethod"])
			assert.Zero(t, f.count(t, &models.Order{}))
		})
	}
}

func TestCheckout_MissingFields(t *testing.T) {
	f := newFixture(t)
	user := testutil.User(t, f.db, "ada@example.com")

	_, err := f.checkout.Checkout(context.Background(), f.db, user.ID, CheckoutRequest{Name: "Ada"})
	ae := requireKind(t, err, apperr.Invalid)
	assert.ElementsMatch(t,
		[]string{"email", "phone", "shippingAddress", "cartItems", "deliveryMethod", "paymentMethod"},
		ae.Details["missingFields"])
}

func TestCheckout_RequestValidation(t *testing.T) {
	f := newFixture(t)
	user := testutil.User(t, f.db, "ada@example.com")
	p := testutil.Product(t, f.db, "tea", 100)
	testutil.DeliverySettings(t, f.db, 500, 20)

	t.Run("address needs both languages", func(t *testing.T) {
		req := f.request(p.ID, 100, 1, float64(0), models.PaymentOnline)
		req.ShippingAddress = &models.LocalizedText{EN: "1 Main St"}
		_, err := f.checkout.Checkout(context.Background(), f.db, user.ID, req)
		requireKind(t, err, apperr.Invalid)
	})
	t.Run("empty cart", func(t *testing.T) {
		req := f.request(p.ID, 100, 1, float64(0), models.PaymentOnline)
		req.CartItems = []CartItemInput{}
		_, err := f.checkout.Checkout(context.Background(), f.db, user.ID, req)
		requireKind(t, err, apperr.Invalid)
	})
	t.Run("unknown payment method", func(t *testing.T) {
		_, err := f.checkout.Checkout(context.Background(), f.db, user.ID, f.request(p.ID, 100, 1, float64(0), "bitcoin"))
		requireKind(t, err, apperr.Invalid)
	})
	t.Run("zero quantity", func(t *testing.T) {
		_, err := f.checkout.Checkout(context.Background(), f.db, user.ID, f.request(p.ID, 100, 0, float64(0), models.PaymentOnline))
		ae := requireKind(t, err, apperr.Invalid)
		assert.Contains(t, ae.Details, "invalidItems")
	})
	t.Run("unknown product", func(t *testing.T) {
		_, err := f.checkout.Checkout(context.Background(), f.db, user.ID, f.request("missing", 100, 1, float64(0), models.PaymentOnline))
		ae := requireKind(t, err, apperr.Invalid)
		assert.Equal(t, []string{"missing"}, ae.Details["unknownProducts"])
	})
	assert.Zero(t, f.count(t, &models.Order{}))
	assert.Zero(t, f.count(t, &models.Invoice{}))
}

func TestCheckout_SessionAndSettings(t *testing.T) {
	f := newFixture(t)
	p := testutil.Product(t, f.db, "tea", 100)

	_, err := f.checkout.Checkout(context.Background(), f.db, "", f.request(p.ID, 100, 1, float64(0), models.PaymentOnline))
	requireKind(t, err, apperr.Unauthorized)

	_, err = f.checkout.Checkout(context.Background(), f.db, "ghost", f.request(p.ID, 100, 1, float64(0), models.PaymentOnline))
	requireKind(t, err, apperr.NotFound)

	user := testutil.User(t, f.db, "ada@example.com")
	_, err = f.checkout.Checkout(context.Background(), f.db, user.ID, f.request(p.ID, 100, 1, float64(0), models.PaymentOnline))
	requireKind(t, err, apperr.NotFound)
}

func TestCheckout_PeriodRequiresPeriodUser(t *testing.T) {
	f := newFixture(t)
	user := testutil.User(t, f.db, "ada@example.com")
	p := testutil.Product(t, f.db, "tea", 100)
	testutil.DeliverySettings(t, f.db, 500, 20)

	_, err := f.checkout.Checkout(context.Background(), f.db, user.ID, f.request(p.ID, 100, 1, float64(0), models.PaymentPeriodInvoice))
	ae := requireKind(t, err, apperr.Invalid)
	assert.Equal(t, false, ae.Details["isPeriodPaidUser"])

	assert.Zero(t, f.count(t, &models.Order{}))
	assert.Zero(t, f.count(t, &models.Invoice{}))
	assert.Zero(t, f.count(t, &models.OrderItem{}))
}

func TestCheckout_PeriodOrdersShareInvoice(t *testing.T) {
	for _, period := range []string{models.PaymentPeriodWeekly, models.PaymentPeriodMonthly} {
		t.Run(period, func(t *testing.T) {
			f := newFixture(t)
			user := testutil.User(t, f.db, "ada@example.com", func(u *models.User) {
				u.IsPeriodPaidUser = true
				u.PaymentPeriod = period
			})
			p := testutil.Product(t, f.db, "tea", 100)
			testutil.DeliverySettings(t, f.db, 500, 20)

			first, err := f.checkout.Checkout(context.Background(), f.db, user.ID, f.request(p.ID, 100, 1, float64(0), models.PaymentPeriodInvoice))
			require.NoError(t, err)

			f.now = f.now.Add(26 * time.Hour)
			second, err := f.checkout.Checkout(context.Background(), f.db, user.ID, f.request(p.ID, 100, 2, float64(0), models.PaymentPeriodInvoice))
			require.NoError(t, err)

			assert.Equal(t, first.InvoiceNumber, second.InvoiceNumber)
			assert.Regexp(t, `^PINV-202610-\d{4}$`, first.InvoiceNumber)
			assert.Equal(t, int64(1), f.count(t, &models.Invoice{}))

			var inv models.Invoice
			require.NoError(t, f.db.Preload("Orders").Preload("Items").First(&inv).Error)
			assert.Equal(t, models.InvoicePeriod, inv.InvoiceType)
			assert.Len(t, inv.Orders, 2)
			assert.Len(t, inv.Items, 2)
			assertMoney(t, 120+220, inv.Amount, "period amount")

			var orders []models.Order
			require.NoError(t, f.db.Find(&orders).Error)
			for _, o := range orders {
				assert.Equal(t, models.OrderTypePeriod, o.OrderType)
				assert.Equal(t, inv.InvoiceNumber, o.PeriodInvoiceNumber)
				require.NotNil(t, o.PeriodStart)
				assert.True(t, o.PeriodStart.Equal(*inv.PeriodStart))
			}

			var reloaded models.User
			require.NoError(t, f.db.First(&reloaded, "id = ?", user.ID).Error)
			require.Len(t, reloaded.PaymentHistory, 1)
			assert.Equal(t, inv.InvoiceNumber, reloaded.PaymentHistory[0].InvoiceNumber)
		})
	}
}

func TestCheckout_PeriodNextWindowOpensNewInvoice(t *testing.T) {
	f := newFixture(t)
	user := testutil.User(t, f.db, "ada@example.com", func(u *models.User) {
		u.IsPeriodPaidUser = true
		u.PaymentPeriod = models.PaymentPeriodWeekly
	})
	p := testutil.Product(t, f.db, "tea", 100)
	testutil.DeliverySettings(t, f.db, 500, 20)

	first, err := f.checkout.Checkout(context.Background(), f.db, user.ID, f.request(p.ID, 100, 1, float64(0), models.PaymentPeriodInvoice))
	require.NoError(t, err)
	f.now = f.now.AddDate(0, 0, 8)
	second, err := f.checkout.Checkout(context.Background(), f.db, user.ID, f.request(p.ID, 100, 1, float64(0), models.PaymentPeriodInvoice))
	require.NoError(t, err)

	assert.NotEqual(t, first.InvoiceNumber, second.InvoiceNumber)
	var reloaded models.User
	require.NoError(t, f.db.First(&reloaded, "id = ?", user.ID).Error)
	assert.Len(t, reloaded.PaymentHistory, 2)
}

func TestSendConfirmation(t *testing.T) {
	f := newFixture(t)
	user := testutil.User(t, f.db, "ada@example.com")
	p := testutil.Product(t, f.db, "tea", 100)
	testutil.DeliverySettings(t, f.db, 500, 20)

	res, err := f.checkout.Checkout(context.Background(), f.db, user.ID, f.request(p.ID, 100, 2, float64(0), models.PaymentOnline))
	require.NoError(t, err)

	f.checkout.SendConfirmation(context.Background(), res)
	require.Equal(t, 1, f.mail.Count())
	msg := f.mail.Sent[0]
	assert.Equal(t, []string{"ada@example.com"}, msg.To)
	assert.Contains(t, msg.Text, res.OrderReference)
	assert.Contains(t, msg.Text, "2 x tea")
	assert.Contains(t, msg.Text, "Total: 220.00")

	f.mail.Err = errors.New("smtp down")
	assert.NotPanics(t, func() { f.checkout.SendConfirmation(context.Background(), res) })
}

func TestTotals(t *testing.T) {
	items := []CartItemInput{
		{ID: "a", Quantity: 3, Price: decimal.RequireFromString("19.99")},
		{ID: "b", Quantity: 1, Price: decimal.RequireFromString("0.03")},
	}
	method := models.DeliveryMethod{Cost: decimal.NewFromInt(60)}

	sub, del, total := Totals(items, method, decimal.NewFromInt(60))
	assert.Equal(t, "60", sub.String())
	assert.True(t, del.IsZero())
	assert.Equal(t, "60", total.String())

	sub, del, total = Totals(items[:1], method, decimal.NewFromInt(60))
	assert.Equal(t, "59.97", sub.String())
	assert.Equal(t, "60", del.String())
	assert.Equal(t, "119.97", total.String())
}
