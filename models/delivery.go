package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DeliverySettingsID is the primary key of the singleton settings row.
const DeliverySettingsID uint = 1

type DeliveryMethod struct {
	Name LocalizedText   `json:"name"`
	Cost decimal.Decimal `json:"cost"`
	Icon IconSource      `json:"icon,omitempty"`
}

type DeliverySettings struct {
	ID                    uint                                `json:"-" gorm:"primaryKey"`
	DeliveryMethods       datatypes.JSONSlice[DeliveryMethod] `json:"deliveryMethods"`
	FreeDeliveryThreshold decimal.Decimal                     `json:"freeDeliveryThreshold" gorm:"type:numeric(12,2)"`
	UpdatedAt             time.Time                           `json:"updatedAt"`
}

// Method returns the delivery method at idx, if idx is within bounds.
func (s *DeliverySettings) Method(idx int) (DeliveryMethod, bool) {
	if idx < 0 || idx >= len(s.DeliveryMethods) {
		return DeliveryMethod{}, false
	}
	return s.DeliveryMethods[idx], true
}
