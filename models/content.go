package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BlogPost struct {
	ID          string                            `json:"id" gorm:"primaryKey;size:36"`
	Slug        string                            `json:"slug" gorm:"size:191;uniqueIndex;not null"`
	Title       datatypes.JSONType[LocalizedText] `json:"title"`
	Excerpt     datatypes.JSONType[LocalizedText] `json:"excerpt"`
	Content     datatypes.JSONType[LocalizedText] `json:"content"`
	CoverImage  string                            `json:"coverImage"`
	Tags        datatypes.JSONSlice[string]       `json:"tags"`
	Published   bool                              `json:"published" gorm:"index"`
	PublishedAt *time.Time                        `json:"publishedAt,omitempty"`
	AuthorID    string                            `json:"authorId" gorm:"size:36"`
	CreatedAt   time.Time                         `json:"createdAt"`
	UpdatedAt   time.Time                         `json:"updatedAt"`
}

type NewsletterSubscriber struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	Email          string     `json:"email" gorm:"size:255;uniqueIndex;not null"`
	Language       string     `json:"language" gorm:"size:8"`
	Active         bool       `json:"active"`
	Token          string     `json:"-" gorm:"size:36;uniqueIndex"`
	SubscribedAt   time.Time  `json:"subscribedAt"`
	UnsubscribedAt *time.Time `json:"unsubscribedAt,omitempty"`
}

func (p *BlogPost) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return
}

func (s *NewsletterSubscriber) BeforeCreate(tx *gorm.DB) (err error) {
	if s.Token == "" {
		s.Token = uuid.NewString()
	}
	return
}
