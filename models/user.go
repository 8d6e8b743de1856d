package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PaymentPeriodWeekly  = "weekly"
	PaymentPeriodMonthly = "monthly"
)

type User struct {
	ID        string `json:"id" gorm:"primaryKey;size:36"`
	FirstName string `json:"firstName" gorm:"not null"`
	LastName  string `json:"lastName" gorm:"not null"`
	Email     string `json:"email" gorm:"size:255;uniqueIndex;not null"`
	Phone     string `json:"phone"`
	Password  []byte `json:"-" gorm:"not null"`
	IsAdmin   bool   `json:"admin"`
	Role      string `json:"role" gorm:"size:32;not null"`

	IsPeriodPaidUser bool                                    `json:"isPeriodPaidUser"`
	PaymentPeriod    string                                  `json:"paymentPeriod,omitempty" gorm:"size:16"`
	PaymentHistory   datatypes.JSONSlice[PaymentHistoryEntry] `json:"paymentHistory"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PaymentHistoryEntry records one billing window a period-paid user was
// invoiced for.
type PaymentHistoryEntry struct {
	PeriodStart   time.Time `json:"periodStart"`
	PeriodEnd     time.Time `json:"periodEnd"`
	InvoiceNumber string    `json:"invoiceNumber"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	return
}

func (user *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return err
	}
	user.Password = hashedPassword
	return nil
}

func (user *User) ComparePassword(password string) error {
	return bcrypt.CompareHashAndPassword(user.Password, []byte(password))
}

func (user *User) FullName() string {
	if user.LastName == "" {
		return user.FirstName
	}
	return user.FirstName + " " + user.LastName
}

// HasPaymentWindow reports whether an entry for exactly [start, end] exists.
func (user *User) HasPaymentWindow(start, end time.Time) bool {
	for _, e := range user.PaymentHistory {
		if e.PeriodStart.Equal(start) && e.PeriodEnd.Equal(end) {
			return true
		}
	}
	return false
}
