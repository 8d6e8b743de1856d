package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"storefront-backend/apperr"
	"storefront-backend/logger"
	"storefront-backend/mailer"
	"storefront-backend/models"
	"storefront-backend/refs"
)

type CartItemInput struct {
	ID       string          `json:"id"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type CheckoutRequest struct {
	Name             string                `json:"name"`
	Email            string                `json:"email"`
	Phone            string                `json:"phone"`
	ShippingAddress  *models.LocalizedText `json:"shippingAddress"`
	CartItems        []CartItemInput       `json:"cartItems"`
	DeliveryMethod   any                   `json:"deliveryMethod"`
	PaymentMethod    models.PaymentMethod  `json:"paymentMethod"`
	PaymentProofURL  string                `json:"paymentProofUrl"`
	PaymentReference string                `json:"paymentReference"`
	PaymentDate      *time.Time            `json:"paymentDate"`
}

type CheckoutResult struct {
	OrderID        string
	OrderReference string
	InvoiceNumber  string
	Confirmation   mailer.ConfirmationData
}

type CheckoutService struct {
	refs     *refs.Generator
	delivery *DeliveryService
	recalc   *InvoiceRecalculator
	mail     mailer.Sender
	now      Clock
}

func NewCheckoutService(gen *refs.Generator, delivery *DeliveryService, recalc *InvoiceRecalculator, mail mailer.Sender) *CheckoutService {
	return &CheckoutService{refs: gen, delivery: delivery, recalc: recalc, mail: mail, now: systemClock}
}

// WithClock replaces the time source.
func (s *CheckoutService) WithClock(c Clock) *CheckoutService {
	s.now = c
	return s
}

// missingFields lists the required request fields that are absent.
func (r *CheckoutRequest) missingFields() []string {
	var missing []string
	if strings.TrimSpace(r.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(r.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(r.Phone) == "" {
		missing = append(missing, "phone")
	}
	if r.ShippingAddress == nil {
		missing = append(missing, "shippingAddress")
	}
	if r.CartItems == nil {
		missing = append(missing, "cartItems")
	}
	if r.DeliveryMethod == nil {
		missing = append(missing, "deliveryMethod")
	}
	if r.PaymentMethod == "" {
		missing = append(missing, "paymentMethod")
	}
	return missing
}

func (r *CheckoutRequest) validate() error {
	if missing := r.missingFields(); len(missing) > 0 {
		return apperr.InvalidErr("Missing required fields", map[string]any{"missingFields": missing})
	}
	if !r.ShippingAddress.Complete() {
		return apperr.InvalidErr("Shipping address requires both English and Chinese versions", map[string]any{
			"shippingAddress": map[string]bool{
				models.LangEN:   strings.TrimSpace(r.ShippingAddress.EN) != "",
				models.LangZhTW: strings.TrimSpace(r.ShippingAddress.ZhTW) != "",
			},
		})
	}
	if len(r.CartItems) == 0 {
		return apperr.InvalidErr("Cart is empty", map[string]any{"cartItems": "must contain at least one item"})
	}
	if !r.PaymentMethod.Valid() {
		return apperr.InvalidErr("Invalid payment method", map[string]any{"paymentMethod": string(r.PaymentMethod)})
	}

	var invalid []map[string]any
	for i, it := range r.CartItems {
		var reason string
		switch {
		case strings.TrimSpace(it.ID) == "":
			reason = "id is required"
		case it.Quantity < 1:
			reason = "quantity must be at least 1"
		case it.Price.IsNegative():
			reason = "price must not be negative"
		}
		if reason != "" {
			invalid = append(invalid, map[string]any{"index": i, "id": it.ID, "reason": reason})
		}
	}
	if len(invalid) > 0 {
		return apperr.InvalidErr("Invalid cart items", map[string]any{"invalidItems": invalid})
	}
	return nil
}

// ParseDeliveryIndex converts the submitted delivery method into an index of
// a list of n methods. Numbers and numeric strings are accepted.
func ParseDeliveryIndex(raw any, n int) (int, error) {
	f, ok := numberOf(raw)
	isNaN := !ok
	isNegative := ok && f < 0
	isOutOfBounds := ok && (f >= float64(n) || f != math.Trunc(f))
	if isNaN || isNegative || isOutOfBounds {
		return 0, apperr.InvalidErr("Invalid delivery method", map[string]any{
			"deliveryMethod": raw,
			"validation": map[string]any{
				"isNaN":            isNaN,
				"isNegative":       isNegative,
				"isOutOfBounds":    isOutOfBounds,
				"availableMethods": n,
			},
		})
	}
	return int(f), nil
}

func numberOf(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, !math.IsNaN(v) && !math.IsInf(v, 0)
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

// Totals prices a cart against the delivery settings. Delivery is free once
// the subtotal reaches the threshold.
func Totals(items []CartItemInput, method models.DeliveryMethod, threshold decimal.Decimal) (subtotal, deliveryCost, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	subtotal = subtotal.Round(2)
	deliveryCost = method.Cost.Round(2)
	if subtotal.GreaterThanOrEqual(threshold) {
		deliveryCost = decimal.Zero
	}
	return subtotal, deliveryCost, subtotal.Add(deliveryCost)
}

// Checkout validates the cart and writes the order together with its invoice
// linkage in one transaction. The confirmation email is not sent here; see
// SendConfirmation.
func (s *CheckoutService) Checkout(ctx context.Context, db *gorm.DB, userID string, req CheckoutRequest) (*CheckoutResult, error) {
	if userID == "" {
		return nil, apperr.UnauthorizedErr("Authentication required")
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	address := req.ShippingAddress.Trimmed()
	now := s.now()

	var res *CheckoutResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return notFound(err, "User not found")
		}

		settings, err := s.delivery.Get(ctx, tx)
		if err != nil {
			return err
		}
		idx, err := ParseDeliveryIndex(req.DeliveryMethod, len(settings.DeliveryMethods))
		if err != nil {
			return err
		}
		method, _ := settings.Method(idx)

		names, err := productNames(tx, req.CartItems)
		if err != nil {
			return err
		}

		subtotal, deliveryCost, total := Totals(req.CartItems, method, settings.FreeDeliveryThreshold)

		order := &models.Order{
			UserID:           user.ID,
			Name:             strings.TrimSpace(req.Name),
			Email:            strings.TrimSpace(req.Email),
			Phone:            strings.TrimSpace(req.Phone),
			ShippingAddress:  datatypes.NewJSONType(address),
			DeliveryMethod:   idx,
			DeliverySnapshot: datatypes.NewJSONType(models.DeliverySnapshot{Name: method.Name, Cost: method.Cost}),
			DeliveryCost:     deliveryCost,
			Subtotal:         subtotal,
			Total:            total,
			PaymentMethod:    req.PaymentMethod,
			OrderReference:   s.refs.OrderReference(),
		}
		for _, it := range req.CartItems {
			order.Items = append(order.Items, models.OrderItem{ProductID: it.ID, Quantity: it.Quantity, Price: it.Price.Round(2)})
		}

		var invoiceNumber string
		if req.PaymentMethod == models.PaymentPeriodInvoice {
			invoiceNumber, err = s.checkoutPeriod(ctx, tx, &user, order, address, now)
		} else {
			invoiceNumber, err = s.checkoutOneTime(ctx, tx, order, req, address, now)
		}
		if err != nil {
			return err
		}

		res = &CheckoutResult{
			OrderID:        order.ID,
			OrderReference: order.OrderReference,
			InvoiceNumber:  invoiceNumber,
			Confirmation: mailer.ConfirmationData{
				CustomerName:   order.Name,
				Email:          order.Email,
				OrderReference: order.OrderReference,
				InvoiceNumber:  invoiceNumber,
				Subtotal:       subtotal,
				DeliveryCost:   deliveryCost,
				Total:          total,
			},
		}
		for _, it := range order.Items {
			res.Confirmation.Lines = append(res.Confirmation.Lines, mailer.ConfirmationLine{
				Name: names[it.ProductID], Quantity: it.Quantity, Price: it.Price,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// productNames loads the English display name of every product in the cart
// and fails when any of them does not exist.
func productNames(tx *gorm.DB, items []CartItemInput) (map[string]string, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	var products []models.Product
	if err := tx.Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, apperr.Wrap(err, "could not load cart products")
	}
	names := make(map[string]string, len(products))
	for _, p := range products {
		names[p.ID] = p.DisplayNames.Data().Get(models.LangEN)
	}

	var unknown []string
	for _, id := range ids {
		if _, ok := names[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return nil, apperr.InvalidErr("Unknown products in cart", map[string]any{"unknownProducts": unknown})
	}
	return names, nil
}

func (s *CheckoutService) checkoutOneTime(ctx context.Context, tx *gorm.DB, order *models.Order, req CheckoutRequest, address models.LocalizedText, now time.Time) (string, error) {
	order.OrderType = models.OrderTypeOneTime
	order.Status = models.OrderPending
	if req.PaymentMethod == models.PaymentOffline {
		order.Status = models.OrderPendingPaymentVerification
		order.PaymentProofURL = strings.TrimSpace(req.PaymentProofURL)
		order.PaymentReference = strings.TrimSpace(req.PaymentReference)
		order.PaymentDate = req.PaymentDate
	}
	if err := tx.Create(order).Error; err != nil {
		return "", apperr.Wrap(err, "could not create order")
	}

	number, err := s.refs.OneTimeInvoiceNumber(tx, now)
	if err != nil {
		return "", apperr.Wrap(err, "could not generate invoice number")
	}
	inv := &models.Invoice{
		UserID:          order.UserID,
		InvoiceNumber:   number,
		InvoiceType:     models.InvoiceOneTime,
		Amount:          order.Total,
		Items:           invoiceItems(order),
		Status:          models.InvoicePending,
		BillingAddress:  datatypes.NewJSONType(address),
		ShippingAddress: datatypes.NewJSONType(address),
	}
	if err := tx.Create(inv).Error; err != nil {
		return "", apperr.Wrap(err, "could not create invoice")
	}
	if err := attachOrder(tx, inv.ID, order.ID); err != nil {
		return "", err
	}
	if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Update("invoice_number", number).Error; err != nil {
		return "", apperr.Wrap(err, "could not link invoice to order")
	}
	order.InvoiceNumber = number

	if err := s.recalc.Recalculate(ctx, tx, inv.ID); err != nil {
		return "", err
	}
	return number, nil
}

func (s *CheckoutService) checkoutPeriod(ctx context.Context, tx *gorm.DB, user *models.User, order *models.Order, address models.LocalizedText, now time.Time) (string, error) {
	window, err := WindowFor(user.PaymentPeriod, now)
	if !user.IsPeriodPaidUser || err != nil {
		return "", apperr.InvalidErr("Period billing is not enabled for this account", map[string]any{
			"paymentMethod":    string(models.PaymentPeriodInvoice),
			"isPeriodPaidUser": user.IsPeriodPaidUser,
			"paymentPeriod":    user.PaymentPeriod,
		})
	}

	inv, err := s.openPeriodInvoice(ctx, tx, user.ID, window, address, now)
	if err != nil {
		return "", err
	}
	window = Window{Start: *inv.PeriodStart, End: *inv.PeriodEnd}

	order.OrderType = models.OrderTypePeriod
	order.Status = models.OrderPending
	order.PeriodInvoiceNumber = inv.InvoiceNumber
	order.PeriodStart = &window.Start
	order.PeriodEnd = &window.End
	if err := tx.Create(order).Error; err != nil {
		return "", apperr.Wrap(err, "could not create order")
	}

	if err := attachOrder(tx, inv.ID, order.ID); err != nil {
		return "", err
	}
	items := invoiceItems(order)
	for i := range items {
		items[i].InvoiceID = inv.ID
	}
	if err := tx.Create(&items).Error; err != nil {
		return "", apperr.Wrap(err, "could not add invoice items")
	}
	if err := tx.Model(&models.Invoice{}).Where("id = ?", inv.ID).
		Update("amount", gorm.Expr("amount + ?", order.Total)).Error; err != nil {
		return "", apperr.Wrap(err, "could not update invoice amount")
	}

	if !user.HasPaymentWindow(window.Start, window.End) {
		user.PaymentHistory = append(user.PaymentHistory, models.PaymentHistoryEntry{
			PeriodStart:   window.Start,
			PeriodEnd:     window.End,
			InvoiceNumber: inv.InvoiceNumber,
			Status:        string(models.InvoicePending),
			CreatedAt:     now,
		})
		if err := tx.Model(user).Update("payment_history", user.PaymentHistory).Error; err != nil {
			return "", apperr.Wrap(err, "could not record payment history")
		}
	}
	return inv.InvoiceNumber, nil
}

// openPeriodInvoice returns the user's pending period invoice whose window
// contains now, creating one for window when there is none.
func (s *CheckoutService) openPeriodInvoice(ctx context.Context, tx *gorm.DB, userID string, window Window, address models.LocalizedText, now time.Time) (*models.Invoice, error) {
	var inv models.Invoice
	err := tx.Where("user_id = ? AND invoice_type = ? AND status = ? AND period_start <= ? AND period_end >= ?",
		userID, models.InvoicePeriod, models.InvoicePending, now, now).
		Order("period_start DESC").
		First(&inv).Error
	if err == nil {
		return &inv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Wrap(err, "could not look up period invoice")
	}

	number, err := s.refs.PeriodInvoiceNumber(tx, window.Start)
	if err != nil {
		return nil, apperr.Wrap(err, "could not generate period invoice number")
	}
	inv = models.Invoice{
		UserID:          userID,
		InvoiceNumber:   number,
		InvoiceType:     models.InvoicePeriod,
		PeriodStart:     &window.Start,
		PeriodEnd:       &window.End,
		Amount:          decimal.Zero,
		Status:          models.InvoicePending,
		BillingAddress:  datatypes.NewJSONType(address),
		ShippingAddress: datatypes.NewJSONType(address),
	}
	if err := tx.Create(&inv).Error; err != nil {
		return nil, apperr.Wrap(err, "could not create period invoice")
	}
	logger.WithModule("checkout").WithField("invoice", number).Info("opened period invoice")
	return &inv, nil
}

func invoiceItems(order *models.Order) []models.InvoiceItem {
	items := make([]models.InvoiceItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, models.InvoiceItem{
			OrderID:   order.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}
	return items
}

func attachOrder(tx *gorm.DB, invoiceID, orderID string) error {
	if err := tx.Table("invoice_orders").Create(map[string]any{
		"invoice_id": invoiceID,
		"order_id":   orderID,
	}).Error; err != nil {
		return apperr.Wrap(err, "could not attach order to invoice")
	}
	return nil
}

// SendConfirmation emails the customer. Failures are logged and dropped.
func (s *CheckoutService) SendConfirmation(ctx context.Context, res *CheckoutResult) {
	if res == nil || s.mail == nil {
		return
	}
	if err := s.mail.Send(ctx, mailer.OrderConfirmation(res.Confirmation)); err != nil {
		logger.WithModule("checkout").
			WithError(err).
			WithField("order_reference", res.OrderReference).
			Warn("order confirmation email failed")
	}
}
