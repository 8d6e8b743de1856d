package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"storefront-backend/apperr"
	"storefront-backend/events"
	"storefront-backend/logger"
	"storefront-backend/models"
	"storefront-backend/utils"
)

// OrderView is an order with the fields derived for display.
type OrderView struct {
	models.Order
	DeliveryMethodName models.LocalizedText `json:"deliveryMethodName"`
}

type OrderUpdateInput struct {
	PaymentProofURL *string             `json:"paymentProofUrl"`
	Status          *models.OrderStatus `json:"status"`
	IsPaid          *bool               `json:"isPaid"`
}

// OrderUpdateResult carries the saved order and whether its status changed.
type OrderUpdateResult struct {
	Order         *models.Order
	StatusChanged bool
}

type OrderService struct {
	delivery    *DeliveryService
	bus         *events.Bus
	broadcaster *events.Broadcaster
	recalc      *InvoiceRecalculator
	now         Clock
}

func NewOrderService(delivery *DeliveryService, bus *events.Bus, broadcaster *events.Broadcaster, recalc *InvoiceRecalculator) *OrderService {
	return &OrderService{delivery: delivery, bus: bus, broadcaster: broadcaster, recalc: recalc, now: systemClock}
}

func (s *OrderService) WithClock(c Clock) *OrderService {
	s.now = c
	return s
}

func loadOrder(ctx context.Context, db *gorm.DB, id string) (*models.Order, error) {
	var o models.Order
	err := db.WithContext(ctx).
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("id ASC") }).
		Preload("Items.Product").
		First(&o, "id = ?", strings.TrimSpace(id)).Error
	if err != nil {
		return nil, notFound(err, "Order not found")
	}
	return &o, nil
}

// Get returns the order to its owner or an admin. Period orders that lost
// their invoice linkage are repaired on read, and missing totals are
// recomputed for the response only.
func (s *OrderService) Get(ctx context.Context, db *gorm.DB, viewer Viewer, id string) (*OrderView, error) {
	o, err := loadOrder(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if !viewer.CanSee(o.UserID) {
		return nil, apperr.ForbiddenErr("Not allowed to view this order")
	}

	if o.OrderType == models.OrderTypePeriod && (o.PeriodInvoiceNumber == "" || o.PeriodStart == nil || o.PeriodEnd == nil) {
		if err := s.backfillPeriod(ctx, db, o); err != nil {
			logger.WithModule("orders").WithError(err).WithField("order_id", o.ID).Warn("period invoice backfill failed")
		}
	}

	if o.Subtotal.IsZero() || o.Total.IsZero() {
		o.Subtotal = o.ItemsSubtotal()
		o.Total = o.Subtotal.Add(o.DeliveryCost)
	}

	return &OrderView{Order: *o, DeliveryMethodName: s.delivery.MethodName(ctx, db, o)}, nil
}

// backfillPeriod copies the owning period invoice's number and window onto o
// and persists them.
func (s *OrderService) backfillPeriod(ctx context.Context, db *gorm.DB, o *models.Order) error {
	var inv models.Invoice
	err := db.WithContext(ctx).
		Joins("JOIN invoice_orders ON invoice_orders.invoice_id = invoices.id").
		Where("invoice_orders.order_id = ? AND invoices.invoice_type = ?", o.ID, models.InvoicePeriod).
		First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	o.PeriodInvoiceNumber = inv.InvoiceNumber
	o.PeriodStart = inv.PeriodStart
	o.PeriodEnd = inv.PeriodEnd
	return db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", o.ID).Updates(map[string]any{
		"period_invoice_number": inv.InvoiceNumber,
		"period_start":          inv.PeriodStart,
		"period_end":            inv.PeriodEnd,
	}).Error
}

// Update applies a payment proof or an admin status change. A proof URL
// always moves the order to pending_payment_verification.
func (s *OrderService) Update(ctx context.Context, db *gorm.DB, viewer Viewer, id string, in OrderUpdateInput) (*OrderUpdateResult, error) {
	if in.PaymentProofURL == nil && in.Status == nil && in.IsPaid == nil {
		return nil, apperr.InvalidErr("Nothing to update", map[string]any{"fields": []string{"paymentProofUrl", "status", "isPaid"}})
	}
	if (in.Status != nil || in.IsPaid != nil) && !viewer.IsAdmin {
		return nil, apperr.ForbiddenErr("Only admins can change order status")
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, apperr.InvalidErr("Invalid order status", map[string]any{"status": string(*in.Status)})
	}

	var res *OrderUpdateResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := loadOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if !viewer.CanSee(o.UserID) {
			return apperr.ForbiddenErr("Not allowed to update this order")
		}

		from := o.Status
		updates := map[string]any{}
		if in.Status != nil {
			updates["status"] = *in.Status
		}
		if in.PaymentProofURL != nil {
			proof := strings.TrimSpace(*in.PaymentProofURL)
			if proof == "" {
				return apperr.InvalidErr("Payment proof URL is empty", map[string]any{"paymentProofUrl": "must not be empty"})
			}
			updates["payment_proof_url"] = proof
			updates["status"] = models.OrderPendingPaymentVerification
		}
		paidChanged := false
		if in.IsPaid != nil && *in.IsPaid != o.IsPaid {
			paidChanged = true
			updates["is_paid"] = *in.IsPaid
			if *in.IsPaid {
				updates["paid_at"] = s.now()
			} else {
				updates["paid_at"] = nil
			}
		}

		if err := tx.Model(&models.Order{}).Where("id = ?", o.ID).Updates(updates).Error; err != nil {
			return apperr.Wrap(err, "could not update order")
		}
		saved, err := loadOrder(ctx, tx, o.ID)
		if err != nil {
			return err
		}

		statusChanged := saved.Status != from
		if statusChanged || paidChanged {
			if err := s.bus.Publish(ctx, tx, events.OrderStatusChanged{
				OrderID: saved.ID,
				From:    string(from),
				To:      string(saved.Status),
			}); err != nil {
				return err
			}
		}
		res = &OrderUpdateResult{Order: saved, StatusChanged: statusChanged}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Announce records the order's current status for polling clients.
func (s *OrderService) Announce(o *models.Order) {
	if s.broadcaster != nil && o != nil {
		s.broadcaster.Broadcast(o.ID, string(o.Status))
	}
}

// Delete removes an order after detaching it from every invoice. Each
// invoice loses the order's items and total, and its status is recalculated.
func (s *OrderService) Delete(ctx context.Context, db *gorm.DB, viewer Viewer, id string) error {
	if !viewer.IsAdmin {
		return apperr.ForbiddenErr("Only admins can delete orders")
	}
	var o models.Order
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&o, "id = ?", strings.TrimSpace(id)).Error; err != nil {
			return notFound(err, "Order not found")
		}

		invoiceIDs, err := invoiceIDsForOrder(tx, o.ID)
		if err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM invoice_orders WHERE order_id = ?", o.ID).Error; err != nil {
			return apperr.Wrap(err, "could not detach order from invoices")
		}
		if err := tx.Where("order_id = ?", o.ID).Delete(&models.InvoiceItem{}).Error; err != nil {
			return apperr.Wrap(err, "could not remove invoice items")
		}
		for _, invID := range invoiceIDs {
			if err := tx.Model(&models.Invoice{}).Where("id = ?", invID).
				Update("amount", gorm.Expr("CASE WHEN amount - ? < 0 THEN 0 ELSE amount - ? END", o.Total, o.Total)).Error; err != nil {
				return apperr.Wrap(err, "could not update invoice amount")
			}
			if err := s.recalc.Recalculate(ctx, tx, invID); err != nil {
				return err
			}
		}

		if err := tx.Where("order_id = ?", o.ID).Delete(&models.OrderItem{}).Error; err != nil {
			return apperr.Wrap(err, "could not delete order items")
		}
		if err := tx.Delete(&o).Error; err != nil {
			return apperr.Wrap(err, "could not delete order")
		}
		logger.WithModule("orders").WithField("order_id", o.ID).WithField("invoices", len(invoiceIDs)).Info("order deleted")
		return nil
	})
	if err != nil {
		return err
	}
	if s.broadcaster != nil {
		s.broadcaster.Forget(o.ID)
	}
	return nil
}

// List pages through orders, newest first. Customers only see their own.
func (s *OrderService) List(ctx context.Context, db *gorm.DB, viewer Viewer, status string, p utils.PageParams) (utils.Page[models.Order], error) {
	q := db.WithContext(ctx).Model(&models.Order{})
	if !viewer.IsAdmin {
		q = q.Where("user_id = ?", viewer.UserID)
	}
	if status = strings.TrimSpace(status); status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.Page[models.Order]{}, apperr.Wrap(err, "could not count orders")
	}
	var items []models.Order
	if err := q.Preload("Items").Order("created_at DESC").Offset(p.Offset()).Limit(p.PageSize).Find(&items).Error; err != nil {
		return utils.Page[models.Order]{}, apperr.Wrap(err, "could not list orders")
	}
	return utils.NewPage(items, total, p), nil
}
