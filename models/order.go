package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderPending                    OrderStatus = "pending"
	OrderPendingPaymentVerification OrderStatus = "pending_payment_verification"
	OrderProcessing                 OrderStatus = "processing"
	OrderShipped                    OrderStatus = "shipped"
	OrderDelivered                  OrderStatus = "delivered"
	OrderCancelled                  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPendingPaymentVerification, OrderProcessing,
		OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

type OrderType string

const (
	OrderTypeOneTime OrderType = "onetime-order"
	OrderTypePeriod  OrderType = "period-order"
)

type PaymentMethod string

const (
	PaymentOffline       PaymentMethod = "offline"
	PaymentOnline        PaymentMethod = "online"
	PaymentPeriodInvoice PaymentMethod = "periodInvoice"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentOffline || m == PaymentOnline || m == PaymentPeriodInvoice
}

// DeliverySnapshot is the delivery method as it was configured at checkout.
type DeliverySnapshot struct {
	Name LocalizedText   `json:"name"`
	Cost decimal.Decimal `json:"cost"`
}

type Order struct {
	ID     string `json:"id" gorm:"primaryKey;size:36"`
	UserID string `json:"userId" gorm:"size:36;index;not null"`
	User   *User  `json:"user,omitempty" gorm:"foreignKey:UserID"`

	Name            string                            `json:"name"`
	Email           string                            `json:"email"`
	Phone           string                            `json:"phone"`
	ShippingAddress datatypes.JSONType[LocalizedText] `json:"shippingAddress"`

	Items []OrderItem `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	DeliveryMethod   int                                  `json:"deliveryMethod"`
	DeliverySnapshot datatypes.JSONType[DeliverySnapshot] `json:"deliverySnapshot"`
	DeliveryCost     decimal.Decimal                      `json:"deliveryCost" gorm:"type:numeric(12,2)"`
	Subtotal         decimal.Decimal                      `json:"subtotal" gorm:"type:numeric(12,2)"`
	Total            decimal.Decimal                      `json:"total" gorm:"type:numeric(12,2)"`

	Status        OrderStatus   `json:"status" gorm:"size:40;index;not null"`
	OrderType     OrderType     `json:"orderType" gorm:"size:20;not null"`
	PaymentMethod PaymentMethod `json:"paymentMethod" gorm:"size:20;not null"`

	PaymentProofURL  string     `json:"paymentProofUrl,omitempty"`
	PaymentReference string     `json:"paymentReference,omitempty"`
	PaymentDate      *time.Time `json:"paymentDate,omitempty"`
	IsPaid           bool       `json:"isPaid"`
	PaidAt           *time.Time `json:"paidAt,omitempty"`

	OrderReference      string     `json:"orderReference" gorm:"size:64;uniqueIndex"`
	InvoiceNumber       string     `json:"invoiceNumber,omitempty" gorm:"size:64;index"`
	PeriodInvoiceNumber string     `json:"periodInvoiceNumber,omitempty" gorm:"size:64;index"`
	PeriodStart         *time.Time `json:"periodStart,omitempty"`
	PeriodEnd           *time.Time `json:"periodEnd,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type OrderItem struct {
	ID        uint            `json:"-" gorm:"primaryKey"`
	OrderID   string          `json:"-" gorm:"size:36;index;not null"`
	ProductID string          `json:"productId" gorm:"size:36;index;not null"`
	Product   *Product        `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price" gorm:"type:numeric(12,2)"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) (err error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return
}

// LineTotal is price × quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemsSubtotal sums the line totals of the loaded items.
func (o *Order) ItemsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// Completed reports whether the order counts as a finished purchase.
func (o *Order) Completed() bool {
	return o.Status == OrderDelivered && o.IsPaid
}
