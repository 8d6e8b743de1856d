package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront-backend/apperr"
	"storefront-backend/events"
	"storefront-backend/logger"
	"storefront-backend/models"
	"storefront-backend/utils"
)

// DeriveInvoiceStatus computes an invoice's status from its attached orders.
// Cancelled orders are ignored unless every order is cancelled.
func DeriveInvoiceStatus(inv *models.Invoice) models.InvoiceStatus {
	if len(inv.Orders) == 0 {
		return inv.Status
	}
	active := make([]models.Order, 0, len(inv.Orders))
	for _, o := range inv.Orders {
		if o.Status != models.OrderCancelled {
			active = append(active, o)
		}
	}
	if len(active) == 0 {
		return models.InvoiceCancelled
	}

	allPaid, verifying := true, inv.PaymentProofURL != ""
	for _, o := range active {
		if !o.IsPaid {
			allPaid = false
		}
		if o.Status == models.OrderPendingPaymentVerification {
			verifying = true
		}
	}
	switch {
	case allPaid:
		return models.InvoicePaid
	case verifying:
		return models.InvoicePendingPaymentVerification
	default:
		return models.InvoicePending
	}
}

// InvoiceRecalculator keeps invoice statuses in line with their orders. It
// subscribes to OrderStatusChanged.
type InvoiceRecalculator struct{}

func NewInvoiceRecalculator() *InvoiceRecalculator { return &InvoiceRecalculator{} }

// Register subscribes the recalculator on bus.
func (r *InvoiceRecalculator) Register(bus *events.Bus) {
	bus.Subscribe(events.OrderStatusChangedName, r.HandleOrderStatusChanged)
}

func (r *InvoiceRecalculator) HandleOrderStatusChanged(ctx context.Context, tx *gorm.DB, ev events.Event) error {
	e, ok := ev.(events.OrderStatusChanged)
	if !ok {
		return fmt.Errorf("unexpected event %T", ev)
	}
	ids, err := invoiceIDsForOrder(tx, e.OrderID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := r.Recalculate(ctx, tx, id); err != nil {
			return err
		}
	}
	return nil
}

// Recalculate reloads the invoice with its orders and stores the derived status.
func (r *InvoiceRecalculator) Recalculate(ctx context.Context, tx *gorm.DB, invoiceID string) error {
	var inv models.Invoice
	if err := tx.WithContext(ctx).Preload("Orders").First(&inv, "id = ?", invoiceID).Error; err != nil {
		return notFound(err, "Invoice not found")
	}
	status := DeriveInvoiceStatus(&inv)
	if status == inv.Status {
		return nil
	}
	if err := tx.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", inv.ID).Update("status", status).Error; err != nil {
		return apperr.Wrap(err, "could not update invoice status")
	}
	logger.WithModule("invoices").
		WithField("invoice", inv.InvoiceNumber).
		WithField("from", inv.Status).
		WithField("to", status).
		Debug("invoice status recalculated")
	return nil
}

func invoiceIDsForOrder(tx *gorm.DB, orderID string) ([]string, error) {
	var ids []string
	if err := tx.Table("invoice_orders").Where("order_id = ?", orderID).Pluck("invoice_id", &ids).Error; err != nil {
		return nil, apperr.Wrap(err, "could not look up invoices for order")
	}
	return ids, nil
}

const isoLayout = "2006-01-02T15:04:05.000Z07:00"

func isoTime(t time.Time) string { return t.UTC().Format(isoLayout) }

func isoPtr(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := isoTime(*t)
	return &s
}

type PartySummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type LineView struct {
	OrderID     string               `json:"orderId,omitempty"`
	ProductID   string               `json:"productId"`
	ProductName models.LocalizedText `json:"productName"`
	Quantity    int                  `json:"quantity"`
	Price       decimal.Decimal      `json:"price"`
	LineTotal   decimal.Decimal      `json:"lineTotal"`
}

type InvoiceOrderView struct {
	ID             string             `json:"id"`
	OrderReference string             `json:"orderReference"`
	Status         models.OrderStatus `json:"status"`
	PaymentMethod  string             `json:"paymentMethod"`
	Items          []LineView         `json:"items"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	DeliveryCost   decimal.Decimal    `json:"deliveryCost"`
	Total          decimal.Decimal    `json:"total"`
	IsPaid         bool               `json:"isPaid"`
	CreatedAt      string             `json:"createdAt"`
	Placeholder    bool               `json:"placeholder,omitempty"`
}

// InvoiceView is the serialized invoice returned by the API. All dates are
// ISO-8601 strings.
type InvoiceView struct {
	ID              string               `json:"id"`
	InvoiceNumber   string               `json:"invoiceNumber"`
	InvoiceType     models.InvoiceType   `json:"invoiceType"`
	Status          models.InvoiceStatus `json:"status"`
	User            *PartySummary        `json:"user,omitempty"`
	PeriodStart     *string              `json:"periodStart,omitempty"`
	PeriodEnd       *string              `json:"periodEnd,omitempty"`
	Amount          decimal.Decimal      `json:"amount"`
	Items           []LineView           `json:"items"`
	Orders          []InvoiceOrderView   `json:"orders"`
	BillingAddress  models.LocalizedText `json:"billingAddress"`
	ShippingAddress models.LocalizedText `json:"shippingAddress"`
	PaymentProofURL string               `json:"paymentProofUrl,omitempty"`
	PaymentDate     *string              `json:"paymentDate,omitempty"`
	CreatedAt       string               `json:"createdAt"`
	UpdatedAt       string               `json:"updatedAt"`
}

var errMissingProduct = errors.New("order item references a missing product")

// orderView serializes one attached order. Stored totals win; missing ones
// are rebuilt from the line items.
func orderView(o *models.Order) (InvoiceOrderView, error) {
	v := InvoiceOrderView{
		ID:             o.ID,
		OrderReference: o.OrderReference,
		Status:         o.Status,
		PaymentMethod:  string(o.PaymentMethod),
		IsPaid:         o.IsPaid,
		CreatedAt:      isoTime(o.CreatedAt),
		Items:          make([]LineView, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		if it.Product == nil {
			return InvoiceOrderView{}, fmt.Errorf("%w: %s", errMissingProduct, it.ProductID)
		}
		v.Items = append(v.Items, LineView{
			ProductID:   it.ProductID,
			ProductName: it.Product.DisplayNames.Data(),
			Quantity:    it.Quantity,
			Price:       it.Price,
			LineTotal:   it.LineTotal(),
		})
	}

	calculated := o.ItemsSubtotal()
	v.Subtotal = o.Subtotal
	if v.Subtotal.IsZero() {
		v.Subtotal = calculated
	}
	v.Total = o.Total
	if v.Total.IsZero() {
		v.Total = v.Subtotal.Add(o.DeliveryCost)
	}
	v.DeliveryCost = o.DeliveryCost
	if v.DeliveryCost.IsZero() {
		v.DeliveryCost = v.Total.Sub(calculated)
	}
	return v, nil
}

func placeholderOrder(o *models.Order) InvoiceOrderView {
	return InvoiceOrderView{
		ID:             o.ID,
		OrderReference: o.OrderReference,
		Status:         o.Status,
		PaymentMethod:  string(o.PaymentMethod),
		Items:          []LineView{},
		Subtotal:       decimal.Zero,
		DeliveryCost:   decimal.Zero,
		Total:          decimal.Zero,
		CreatedAt:      isoTime(o.CreatedAt),
		Placeholder:    true,
	}
}

// NewInvoiceView serializes a fully preloaded invoice. An order that cannot
// be serialized is replaced by a zeroed placeholder.
func NewInvoiceView(inv *models.Invoice) *InvoiceView {
	v := &InvoiceView{
		ID:              inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		InvoiceType:     inv.InvoiceType,
		Status:          inv.Status,
		PeriodStart:     isoPtr(inv.PeriodStart),
		PeriodEnd:       isoPtr(inv.PeriodEnd),
		Amount:          inv.Amount,
		Items:           make([]LineView, 0, len(inv.Items)),
		Orders:          make([]InvoiceOrderView, 0, len(inv.Orders)),
		BillingAddress:  inv.BillingAddress.Data(),
		ShippingAddress: inv.ShippingAddress.Data(),
		PaymentProofURL: inv.PaymentProofURL,
		PaymentDate:     isoPtr(inv.PaymentDate),
		CreatedAt:       isoTime(inv.CreatedAt),
		UpdatedAt:       isoTime(inv.UpdatedAt),
	}
	if inv.User != nil {
		v.User = &PartySummary{ID: inv.User.ID, Name: inv.User.FullName(), Email: inv.User.Email}
	}
	for _, it := range inv.Items {
		line := LineView{
			OrderID:   it.OrderID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
			LineTotal: it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))),
		}
		if it.Product != nil {
			line.ProductName = it.Product.DisplayNames.Data()
		}
		v.Items = append(v.Items, line)
	}
	for i := range inv.Orders {
		ov, err := orderView(&inv.Orders[i])
		if err != nil {
			logger.WithModule("invoices").
				WithError(err).
				WithField("invoice", inv.InvoiceNumber).
				WithField("order_id", inv.Orders[i].ID).
				Warn("order serialized as placeholder")
			ov = placeholderOrder(&inv.Orders[i])
		}
		v.Orders = append(v.Orders, ov)
	}
	return v
}

type InvoicePaymentInput struct {
	PaymentProofURL string     `json:"paymentProofUrl" validate:"required"`
	PaymentDate     *time.Time `json:"paymentDate"`
}

type InvoiceService struct {
	recalc *InvoiceRecalculator
	now    Clock
}

func NewInvoiceService(recalc *InvoiceRecalculator) *InvoiceService {
	return &InvoiceService{recalc: recalc, now: systemClock}
}

func (s *InvoiceService) load(ctx context.Context, db *gorm.DB, number string) (*models.Invoice, error) {
	var inv models.Invoice
	err := db.WithContext(ctx).
		Preload("User").
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("id ASC") }).
		Preload("Items.Product").
		Preload("Orders", func(q *gorm.DB) *gorm.DB { return q.Order("created_at ASC") }).
		Preload("Orders.Items").
		Preload("Orders.Items.Product").
		Where("invoice_number = ?", strings.TrimSpace(number)).
		First(&inv).Error
	if err != nil {
		return nil, notFound(err, "Invoice not found")
	}
	return &inv, nil
}

// Get returns the serialized invoice if the viewer owns it or is an admin.
func (s *InvoiceService) Get(ctx context.Context, db *gorm.DB, viewer Viewer, number string) (*InvoiceView, error) {
	inv, err := s.load(ctx, db, number)
	if err != nil {
		return nil, err
	}
	if !viewer.CanSee(inv.UserID) {
		return nil, apperr.ForbiddenErr("Not allowed to view this invoice")
	}
	return NewInvoiceView(inv), nil
}

// UpdatePayment stores the payment proof, recalculates the status and returns
// the re-serialized invoice.
func (s *InvoiceService) UpdatePayment(ctx context.Context, db *gorm.DB, viewer Viewer, number string, in InvoicePaymentInput) (*InvoiceView, error) {
	proof := strings.TrimSpace(in.PaymentProofURL)
	if proof == "" {
		return nil, apperr.InvalidErr("Payment proof URL is required", map[string]any{"missingFields": []string{"paymentProofUrl"}})
	}
	paymentDate := s.now()
	if in.PaymentDate != nil {
		paymentDate = in.PaymentDate.UTC()
	}

	var view *InvoiceView
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Invoice
		if err := tx.Where("invoice_number = ?", strings.TrimSpace(number)).First(&inv).Error; err != nil {
			return notFound(err, "Invoice not found")
		}
		if !viewer.CanSee(inv.UserID) {
			return apperr.ForbiddenErr("Not allowed to update this invoice")
		}
		if err := tx.Model(&models.Invoice{}).Where("id = ?", inv.ID).Updates(map[string]any{
			"payment_proof_url": proof,
			"payment_date":      paymentDate,
		}).Error; err != nil {
			return apperr.Wrap(err, "could not update invoice payment")
		}
		if err := s.recalc.Recalculate(ctx, tx, inv.ID); err != nil {
			return err
		}
		loaded, err := s.load(ctx, tx, inv.InvoiceNumber)
		if err != nil {
			return err
		}
		view = NewInvoiceView(loaded)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// List pages through the viewer's invoices; admins see every invoice.
func (s *InvoiceService) List(ctx context.Context, db *gorm.DB, viewer Viewer, p utils.PageParams) (utils.Page[models.Invoice], error) {
	q := db.WithContext(ctx).Model(&models.Invoice{})
	if !viewer.IsAdmin {
		q = q.Where("user_id = ?", viewer.UserID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.Page[models.Invoice]{}, apperr.Wrap(err, "could not count invoices")
	}
	var items []models.Invoice
	if err := q.Order("created_at DESC").Offset(p.Offset()).Limit(p.PageSize).Find(&items).Error; err != nil {
		return utils.Page[models.Invoice]{}, apperr.Wrap(err, "could not list invoices")
	}
	return utils.NewPage(items, total, p), nil
}
