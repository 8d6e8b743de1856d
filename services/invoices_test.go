package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"storefront-backend/apperr"
	"storefront-backend/models"
	"storefront-backend/testutil"
	"storefront-backend/utils"
)

func TestDeriveInvoiceStatus(t *testing.T) {
	order := func(s models.OrderStatus, paid bool) models.Order {
		return models.Order{Status: s, IsPaid: paid}
	}
	cases := []struct {
		name string
		inv  models.Invoice
		want models.InvoiceStatus
	}{
		{"no orders keeps status", models.Invoice{Status: models.InvoicePaid}, models.InvoicePaid},
		{"all cancelled", models.Invoice{Orders: []models.Order{order(models.OrderCancelled, false), order(models.OrderCancelled, true)}}, models.InvoiceCancelled},
		{"all active paid", models.Invoice{Orders: []models.Order{order(models.OrderDelivered, true), order(models.OrderCancelled, false)}}, models.InvoicePaid},
		{"one verifying", models.Invoice{Orders: []models.Order{order(models.OrderPending, false), order(models.OrderPendingPaymentVerification, false)}}, models.InvoicePendingPaymentVerification},
		{"proof on invoice", models.Invoice{PaymentProofURL: "https://x/p.png", Orders: []models.Order{order(models.OrderPending, false)}}, models.InvoicePendingPaymentVerification},
		{"open", models.Invoice{Orders: []models.Order{order(models.OrderProcessing, false), order(models.OrderDelivered, true)}}, models.InvoicePending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveInvoiceStatus(&tc.inv))
		})
	}
}

// seedLegacyInvoice stores an invoice whose single order lacks its stored
// subtotal and delivery cost.
func seedLegacyInvoice(t *testing.T, f *fixture, owner *models.User, productID string) *models.Invoice {
	t.Helper()
	order := &models.Order{
		UserID:         owner.ID,
		Items:          []models.OrderItem{{ProductID: productID, Quantity: 2, Price: decimal.NewFromInt(50)}},
		Total:          decimal.NewFromInt(130),
		Status:         models.OrderPending,
		OrderType:      models.OrderTypeOneTime,
		PaymentMethod:  models.PaymentOnline,
		OrderReference: "ORD-OLD-" + productID,
	}
	require.NoError(t, f.db.Create(order).Error)

	start := f.now
	inv := &models.Invoice{
		UserID:         owner.ID,
		InvoiceNumber:  "INV-20200101-" + productID,
		InvoiceType:    models.InvoiceOneTime,
		Amount:         decimal.NewFromInt(130),
		Status:         models.InvoicePending,
		PaymentDate:    &start,
		BillingAddress: datatypes.NewJSONType(models.LocalizedText{EN: "1 Main St", ZhTW: "主街1號"}),
		Items:          []models.InvoiceItem{{OrderID: order.ID, ProductID: productID, Quantity: 2, Price: decimal.NewFromInt(50)}},
	}
	require.NoError(t, f.db.Create(inv).Error)
	require.NoError(t, attachOrder(f.db, inv.ID, order.ID))
	return inv
}

func TestInvoiceGet_RecomputesOrderTotals(t *testing.T) {
	f := newFixture(t)
	owner := testutil.User(t, f.db, "owner@example.com")
	p := testutil.Product(t, f.db, "tea", 50)
	inv := seedLegacyInvoice(t, f, owner, p.ID)

	view, err := f.invoices.Get(context.Background(), f.db, Viewer{UserID: owner.ID}, inv.InvoiceNumber)
	require.NoError(t, err)
	require.Len(t, view.Orders, 1)

	o := view.Orders[0]
	assert.False(t, o.Placeholder)
	assertMoney(t, 100, o.Subtotal, "subtotal")
	assertMoney(t, 30, o.DeliveryCost, "deliveryCost")
	assertMoney(t, 130, o.Total, "total")
	require.Len(t, o.Items, 1)
	assert.Equal(t, "tea", o.Items[0].ProductName.EN)

	require.NotNil(t, view.PaymentDate)
	assert.Equal(t, "2026-10-19T12:00:00.000Z", *view.PaymentDate)
	_, err = time.Parse(time.RFC3339, view.CreatedAt)
	assert.NoError(t, err)
	require.NotNil(t, view.User)
	assert.Equal(t, "owner@example.com", view.User.Email)
	assert.Len(t, view.Items, 1)
}

func TestInvoiceGet_DeliveryCostFromItemSubtotal(t *testing.T) {
	f := newFixture(t)
	owner := testutil.User(t, f.db, "owner@example.com")
	p := testutil.Product(t, f.db, "tea", 50)
	inv := seedLegacyInvoice(t, f, owner, p.ID)
	require.NoError(t, f.db.Model(&models.Order{}).Where("order_reference = ?", "ORD-OLD-"+p.ID).
		Update("subtotal", decimal.NewFromInt(90)).Error)

	view, err := f.invoices.Get(context.Background(), f.db, Viewer{UserID: owner.ID}, inv.InvoiceNumber)
	require.NoError(t, err)
	require.Len(t, view.Orders, 1)
	assertMoney(t, 30, view.Orders[0].DeliveryCost, "deliveryCost")
	assertMoney(t, 130, view.Orders[0].Total, "total")
}

func TestInvoiceGet_PlaceholderForBrokenOrder(t *testing.T) {
	f := newFixture(t)
	owner := testutil.User(t, f.db, "owner@example.com")
	p := testutil.Product(t, f.db, "tea", 50)
	inv := seedLegacyInvoice(t, f, owner, p.ID)
	require.NoError(t, f.db.Delete(&models.Product{}, "id = ?", p.ID).Error)

	view, err := f.invoices.Get(context.Background(), f.db, Viewer{UserID: owner.ID}, inv.InvoiceNumber)
	require.NoError(t, err)
	require.Len(t, view.Orders, 1)
	assert.True(t, view.Orders[0].Placeholder)
	assert.True(t, view.Orders[0].Total.IsZero())
	assert.Empty(t, view.Orders[0].Items)
}

func TestInvoiceGet_Access(t *testing.T) {
	f := newFixture(t)
	owner := testutil.User(t, f.db, "owner@example.com")
	other := testutil.User(t, f.db, "other@example.com")
	p := testutil.Product(t, f.db, "tea", 50)
	inv := seedLegacyInvoice(t, f, owner, p.ID)

	_, err := f.invoices.Get(context.Background(), f.db, Viewer{UserID: other.ID}, inv.InvoiceNumber)
	requireKind(t, err, apperr.Forbidden)
	_, err = f.invoices.Get(context.Background(), f.db, Viewer{UserID: owner.ID}, "INV-NOPE")
	requireKind(t, err, apperr.NotFound)
}

func TestInvoiceUpdatePayment(t *testing.T) {
	f := newFixture(t)
	owner := testutil.User(t, f.db, "owner@example.com")
	p := testutil.Product(t, f.db, "tea", 50)
	inv := seedLegacyInvoice(t, f, owner, p.ID)
	ctx := context.Background()

	_, err := f.invoices.UpdatePayment(ctx, f.db, Viewer{UserID: owner.ID}, inv.InvoiceNumber, InvoicePaymentInput{})
	requireKind(t, err, apperr.Invalid)

	paid := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	view, err := f.invoices.UpdatePayment(ctx, f.db, Viewer{UserID: owner.ID}, inv.InvoiceNumber, InvoicePaymentInput{
		PaymentProofURL: "https://files.example.com/proof.pdf",
		PaymentDate:     &paid,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/proof.pdf", view.PaymentProofURL)
	require.NotNil(t, view.PaymentDate)
	assert.Equal(t, "2026-10-18T09:30:00.000Z", *view.PaymentDate)
	assert.Equal(t, models.InvoicePendingPaymentVerification, view.Status)
	assertMoney(t, 100, view.Orders[0].Subtotal, "recomputed subtotal")
}

func TestInvoiceList(t *testing.T) {
	f := newFixture(t)
	owner := testutil.User(t, f.db, "owner@example.com")
	other := testutil.User(t, f.db, "other@example.com")
	p1 := testutil.Product(t, f.db, "tea", 50)
	p2 := testutil.Product(t, f.db, "cake", 50)
	seedLegacyInvoice(t, f, owner, p1.ID)
	seedLegacyInvoice(t, f, other, p2.ID)

	page, err := f.invoices.List(context.Background(), f.db, Viewer{UserID: owner.ID}, utils.NewPageParams(1, 20))
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	page, err = f.invoices.List(context.Background(), f.db, Viewer{IsAdmin: true}, utils.NewPageParams(1, 20))
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
}
