package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"storefront-backend/apperr"
	"storefront-backend/models"
	"storefront-backend/utils"
)

type BlogPostInput struct {
	Slug       string               `json:"slug" validate:"omitempty,max=191"`
	Title      models.LocalizedText `json:"title"`
	Excerpt    models.LocalizedText `json:"excerpt"`
	Content    models.LocalizedText `json:"content"`
	CoverImage string               `json:"coverImage"`
	Tags       []string             `json:"tags" validate:"omitempty,dive,required,max=64"`
	Published  bool                 `json:"published"`
}

type BlogPostPatch struct {
	Slug       *string               `json:"slug" validate:"omitempty,max=191"`
	Title      *models.LocalizedText `json:"title"`
	Excerpt    *models.LocalizedText `json:"excerpt"`
	Content    *models.LocalizedText `json:"content"`
	CoverImage *string               `json:"coverImage"`
	Tags       *[]string             `json:"tags"`
	Published  *bool                 `json:"published"`
}

type ContentService struct {
	now Clock
}

func NewContentService() *ContentService {
	return &ContentService{now: systemClock}
}

func (s *ContentService) WithClock(c Clock) *ContentService {
	s.now = c
	return s
}

// ListPosts pages through blog posts, newest first. Drafts are listed for
// admins only.
func (s *ContentService) ListPosts(ctx context.Context, db *gorm.DB, viewer Viewer, tag string, p utils.PageParams) (utils.Page[models.BlogPost], error) {
	q := db.WithContext(ctx).Model(&models.BlogPost{})
	if !viewer.IsAdmin {
		q = q.Where("published = ?", true)
	}
	if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
		q = q.Where("LOWER("+textCast(db, "tags")+") LIKE ?", `%"`+tag+`"%`)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.Page[models.BlogPost]{}, apperr.Wrap(err, "could not count posts")
	}
	var items []models.BlogPost
	if err := q.Order("COALESCE(published_at, created_at) DESC").Offset(p.Offset()).Limit(p.PageSize).Find(&items).Error; err != nil {
		return utils.Page[models.BlogPost]{}, apperr.Wrap(err, "could not list posts")
	}
	return utils.NewPage(items, total, p), nil
}

// GetPost looks a post up by id or slug.
func (s *ContentService) GetPost(ctx context.Context, db *gorm.DB, viewer Viewer, idOrSlug string) (*models.BlogPost, error) {
	key := strings.TrimSpace(idOrSlug)
	var post models.BlogPost
	if err := db.WithContext(ctx).Where("id = ? OR slug = ?", key, key).First(&post).Error; err != nil {
		return nil, notFound(err, "Post not found")
	}
	if !post.Published && !viewer.IsAdmin {
		return nil, apperr.NotFoundErr("Post not found")
	}
	return &post, nil
}

func (s *ContentService) CreatePost(ctx context.Context, db *gorm.DB, viewer Viewer, in BlogPostInput) (*models.BlogPost, error) {
	title := in.Title.Trimmed()
	if !title.Complete() {
		return nil, apperr.InvalidErr("Title requires both English and Chinese versions", map[string]any{"title": title})
	}
	slug, err := slugFor(in.Slug, title.EN)
	if err != nil {
		return nil, err
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	post := &models.BlogPost{
		Slug:       slug,
		Title:      datatypes.NewJSONType(title),
		Excerpt:    datatypes.NewJSONType(in.Excerpt.Trimmed()),
		Content:    datatypes.NewJSONType(in.Content),
		CoverImage: strings.TrimSpace(in.CoverImage),
		Tags:       datatypes.NewJSONSlice(tags),
		Published:  in.Published,
		AuthorID:   viewer.UserID,
	}
	if in.Published {
		now := s.now()
		post.PublishedAt = &now
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := uniqueSlug(tx, &models.BlogPost{}, slug, ""); err != nil {
			return err
		}
		if err := tx.Create(post).Error; err != nil {
			return apperr.Wrap(err, "could not create post")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (s *ContentService) UpdatePost(ctx context.Context, db *gorm.DB, id string, in BlogPostPatch) (*models.BlogPost, error) {
	utils.NormalizePtrDTO(&in)
	updates := utils.UpdatesFromPtrDTO(&in, nil)
	if in.Title != nil {
		t := in.Title.Trimmed()
		if !t.Complete() {
			return nil, apperr.InvalidErr("Title requires both English and Chinese versions", map[string]any{"title": t})
		}
		updates["title"] = datatypes.NewJSONType(t)
	}
	if in.Excerpt != nil {
		updates["excerpt"] = datatypes.NewJSONType(in.Excerpt.Trimmed())
	}
	if in.Content != nil {
		updates["content"] = datatypes.NewJSONType(*in.Content)
	}
	if in.Tags != nil {
		updates["tags"] = datatypes.NewJSONSlice(*in.Tags)
	}
	if in.Slug != nil {
		updates["slug"] = utils.Slugify(*in.Slug, "")
	}

	id = strings.TrimSpace(id)
	var post models.BlogPost
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, "id = ?", id).Error; err != nil {
			return notFound(err, "Post not found")
		}
		if slug, ok := updates["slug"].(string); ok {
			if slug == "" {
				return apperr.InvalidErr("Slug must not be empty", map[string]any{"slug": *in.Slug})
			}
			if err := uniqueSlug(tx, &models.BlogPost{}, slug, id); err != nil {
				return err
			}
		}
		if in.Published != nil && *in.Published && post.PublishedAt == nil {
			updates["published_at"] = s.now()
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.BlogPost{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return apperr.Wrap(err, "could not update post")
			}
		}
		return tx.First(&post, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *ContentService) DeletePost(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).Delete(&models.BlogPost{})
	if res.Error != nil {
		return apperr.Wrap(res.Error, "could not delete post")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFoundErr("Post not found")
	}
	return nil
}

type SubscribeInput struct {
	Email    string `json:"email" validate:"required,email"`
	Language string `json:"language" validate:"omitempty,oneof=en zh-TW"`
}

type UnsubscribeInput struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", apperr.InvalidErr("Invalid email address", map[string]any{"email": raw})
	}
	return strings.ToLower(addr.Address), nil
}

// Subscribe adds the address to the newsletter. Subscribing twice is a no-op
// and a previously unsubscribed address is reactivated.
func (s *ContentService) Subscribe(ctx context.Context, db *gorm.DB, in SubscribeInput) (*models.NewsletterSubscriber, bool, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, false, err
	}
	lang := in.Language
	if lang == "" {
		lang = models.LangEN
	}

	var sub models.NewsletterSubscriber
	created := false
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", email).First(&sub).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			sub = models.NewsletterSubscriber{Email: email, Language: lang, Active: true, SubscribedAt: s.now()}
			created = true
			return tx.Create(&sub).Error
		}
		if err != nil {
			return apperr.Wrap(err, "could not look up subscriber")
		}
		if sub.Active {
			return nil
		}
		sub.Active = true
		sub.Language = lang
		sub.SubscribedAt = s.now()
		sub.UnsubscribedAt = nil
		sub.Token = uuid.NewString()
		return tx.Save(&sub).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &sub, created, nil
}

func (s *ContentService) Unsubscribe(ctx context.Context, db *gorm.DB, in UnsubscribeInput) error {
	q := db.WithContext(ctx).Model(&models.NewsletterSubscriber{}).Where("active = ?", true)
	switch {
	case strings.TrimSpace(in.Token) != "":
		q = q.Where("token = ?", strings.TrimSpace(in.Token))
	case strings.TrimSpace(in.Email) != "":
		email, err := normalizeEmail(in.Email)
		if err != nil {
			return err
		}
		q = q.Where("email = ?", email)
	default:
		return apperr.InvalidErr("Token or email is required", map[string]any{"missingFields": []string{"token", "email"}})
	}
	res := q.Updates(map[string]any{"active": false, "unsubscribed_at": s.now()})
	if res.Error != nil {
		return apperr.Wrap(res.Error, "could not unsubscribe")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFoundErr("Subscription not found")
	}
	return nil
}

func (s *ContentService) ListSubscribers(ctx context.Context, db *gorm.DB, activeOnly bool, p utils.PageParams) (utils.Page[models.NewsletterSubscriber], error) {
	q := db.WithContext(ctx).Model(&models.NewsletterSubscriber{})
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.Page[models.NewsletterSubscriber]{}, apperr.Wrap(err, "could not count subscribers")
	}
	var items []models.NewsletterSubscriber
	if err := q.Order("subscribed_at DESC").Offset(p.Offset()).Limit(p.PageSize).Find(&items).Error; err != nil {
		return utils.Page[models.NewsletterSubscriber]{}, apperr.Wrap(err, "could not list subscribers")
	}
	return utils.NewPage(items, total, p), nil
}
