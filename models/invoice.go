package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type InvoiceType string

const (
	InvoiceOneTime InvoiceType = "one-time"
	InvoicePeriod  InvoiceType = "period"
)

type InvoiceStatus string

const (
	InvoicePending                    InvoiceStatus = "pending"
	InvoicePendingPaymentVerification InvoiceStatus = "pending_payment_verification"
	InvoicePaid                       InvoiceStatus = "paid"
	InvoiceCancelled                  InvoiceStatus = "cancelled"
)

// Invoice aggregates one order (one-time) or every order of a billing
// period (period).
type Invoice struct {
	ID            string      `json:"id" gorm:"primaryKey;size:36"`
	UserID        string      `json:"userId" gorm:"size:36;index;not null"`
	User          *User       `json:"user,omitempty" gorm:"foreignKey:UserID"`
	InvoiceNumber string      `json:"invoiceNumber" gorm:"size:64;uniqueIndex;not null"`
	InvoiceType   InvoiceType `json:"invoiceType" gorm:"size:20;not null"`

	PeriodStart *time.Time `json:"periodStart,omitempty" gorm:"index"`
	PeriodEnd   *time.Time `json:"periodEnd,omitempty"`

	Amount decimal.Decimal `json:"amount" gorm:"type:numeric(12,2)"`
	Items  []InvoiceItem   `json:"items" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Orders []Order         `json:"orders" gorm:"many2many:invoice_orders;"`
	Status InvoiceStatus   `json:"status" gorm:"size:40;index;not null"`

	BillingAddress  datatypes.JSONType[LocalizedText] `json:"billingAddress"`
	ShippingAddress datatypes.JSONType[LocalizedText] `json:"shippingAddress"`

	PaymentProofURL string     `json:"paymentProofUrl,omitempty"`
	PaymentDate     *time.Time `json:"paymentDate,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type InvoiceItem struct {
	ID        uint            `json:"-" gorm:"primaryKey"`
	InvoiceID string          `json:"-" gorm:"size:36;index;not null"`
	OrderID   string          `json:"orderId" gorm:"size:36;index"`
	ProductID string          `json:"productId" gorm:"size:36;index;not null"`
	Product   *Product        `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price" gorm:"type:numeric(12,2)"`
}

func (inv *Invoice) BeforeCreate(tx *gorm.DB) (err error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	return
}
