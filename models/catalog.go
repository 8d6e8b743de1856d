package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Brand struct {
	ID        string                            `json:"id" gorm:"primaryKey;size:36"`
	Slug      string                            `json:"slug" gorm:"size:128;uniqueIndex;not null"`
	Name      datatypes.JSONType[LocalizedText] `json:"name"`
	CreatedAt time.Time                         `json:"createdAt"`
}

type Category struct {
	ID        string                            `json:"id" gorm:"primaryKey;size:36"`
	Slug      string                            `json:"slug" gorm:"size:128;uniqueIndex;not null"`
	Name      datatypes.JSONType[LocalizedText] `json:"name"`
	Icon      datatypes.JSONType[IconSource]    `json:"icon"`
	CreatedAt time.Time                         `json:"createdAt"`
}

type Product struct {
	ID           string                            `json:"id" gorm:"primaryKey;size:36"`
	Slug         string                            `json:"slug" gorm:"size:191;uniqueIndex;not null"`
	DisplayNames datatypes.JSONType[LocalizedText] `json:"displayNames"`
	Description  datatypes.JSONType[LocalizedText] `json:"description"`
	Price        decimal.Decimal                   `json:"price" gorm:"type:numeric(12,2);not null"`
	Images       datatypes.JSONSlice[string]       `json:"images"`
	Stock        int                               `json:"stock"`
	Active       bool                              `json:"active"`

	BrandID    *string   `json:"brandId" gorm:"size:36;index"`
	Brand      *Brand    `json:"brand,omitempty" gorm:"foreignKey:BrandID"`
	CategoryID *string   `json:"categoryId" gorm:"size:36;index"`
	Category   *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`

	NumReviews    int     `json:"numReviews"`
	AverageRating float64 `json:"averageRating"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (b *Brand) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return
}

func (c *Category) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return
}

func (p *Product) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return
}
