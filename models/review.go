package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Review struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	ProductID string    `json:"productId" gorm:"size:36;not null;uniqueIndex:idx_reviews_product_user,priority:1"`
	UserID    string    `json:"userId" gorm:"size:36;not null;uniqueIndex:idx_reviews_product_user,priority:2"`
	UserName  string    `json:"userName"`
	Rating    int       `json:"rating" gorm:"not null"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return
}
