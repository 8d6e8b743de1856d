package services

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"storefront-backend/apperr"
	"storefront-backend/cache"
	"storefront-backend/models"
)

// DeliveryService reads and writes the singleton delivery settings.
type DeliveryService struct {
	cache *cache.Store[uint, models.DeliverySettings]
}

func NewDeliveryService(c *cache.Store[uint, models.DeliverySettings]) *DeliveryService {
	return &DeliveryService{cache: c}
}

type DeliverySettingsInput struct {
	DeliveryMethods       []models.DeliveryMethod `json:"deliveryMethods" validate:"required,min=1,dive"`
	FreeDeliveryThreshold decimal.Decimal         `json:"freeDeliveryThreshold"`
}

func (s *DeliveryService) Get(ctx context.Context, db *gorm.DB) (*models.DeliverySettings, error) {
	if v, ok := s.cache.Get(models.DeliverySettingsID); ok {
		return &v, nil
	}
	var settings models.DeliverySettings
	if err := db.WithContext(ctx).First(&settings, models.DeliverySettingsID).Error; err != nil {
		return nil, notFound(err, "Delivery settings not found")
	}
	s.cache.Set(models.DeliverySettingsID, settings)
	return &settings, nil
}

func (s *DeliveryService) Update(ctx context.Context, db *gorm.DB, in DeliverySettingsInput) (*models.DeliverySettings, error) {
	if in.FreeDeliveryThreshold.IsNegative() {
		return nil, apperr.InvalidErr("Invalid delivery settings", map[string]any{"freeDeliveryThreshold": "must not be negative"})
	}
	for i, m := range in.DeliveryMethods {
		if !m.Name.Complete() || m.Cost.IsNegative() {
			return nil, apperr.InvalidErr("Invalid delivery settings", map[string]any{
				"deliveryMethods": map[string]any{"index": i, "reason": "name needs en and zh-TW, cost must not be negative"},
			})
		}
		if err := m.Icon.Validate(); err != nil {
			return nil, apperr.InvalidErr("Invalid delivery settings", map[string]any{
				"deliveryMethods": map[string]any{"index": i, "reason": err.Error()},
			})
		}
	}

	settings := models.DeliverySettings{
		ID:                    models.DeliverySettingsID,
		DeliveryMethods:       datatypes.NewJSONSlice(in.DeliveryMethods),
		FreeDeliveryThreshold: in.FreeDeliveryThreshold.Round(2),
	}
	if err := db.WithContext(ctx).Save(&settings).Error; err != nil {
		return nil, apperr.Wrap(err, "could not save delivery settings")
	}
	s.Invalidate()
	return &settings, nil
}

// Invalidate drops the cached settings. Called on every settings write.
func (s *DeliveryService) Invalidate() {
	s.cache.Invalidate(models.DeliverySettingsID)
}

// MethodName resolves the display name of the method an order used,
// preferring the snapshot taken at checkout.
func (s *DeliveryService) MethodName(ctx context.Context, db *gorm.DB, o *models.Order) models.LocalizedText {
	if snap := o.DeliverySnapshot.Data(); snap.Name.EN != "" || snap.Name.ZhTW != "" {
		return snap.Name
	}
	settings, err := s.Get(ctx, db)
	if err != nil {
		return models.LocalizedText{}
	}
	if m, ok := settings.Method(o.DeliveryMethod); ok {
		return m.Name
	}
	return models.LocalizedText{}
}
