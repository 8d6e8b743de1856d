package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"storefront-backend/apperr"
	"storefront-backend/cache"
	"storefront-backend/models"
	"storefront-backend/utils"
)

type ReviewInput struct {
	ProductID string `json:"productId" validate:"required"`
	Rating    int    `json:"rating" validate:"required"`
	Comment   string `json:"comment" validate:"max=4000"`
}

type ReviewUpdateInput struct {
	ReviewID string  `json:"reviewId" validate:"required"`
	Rating   *int    `json:"rating"`
	Comment  *string `json:"comment" validate:"omitempty,max=4000"`
}

type ReviewService struct {
	products *cache.Store[string, models.Product]
}

func NewReviewService(products *cache.Store[string, models.Product]) *ReviewService {
	return &ReviewService{products: products}
}

func checkRating(r int) error {
	if r < 1 || r > 5 {
		return apperr.InvalidErr("Rating must be between 1 and 5", map[string]any{"rating": r})
	}
	return nil
}

// CanReview reports whether the user has a delivered and paid order that
// contains the product.
func (s *ReviewService) CanReview(ctx context.Context, db *gorm.DB, userID, productID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	var n int64
	err := db.WithContext(ctx).Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ? AND orders.status = ? AND orders.is_paid = ? AND order_items.product_id = ?",
			userID, models.OrderDelivered, true, productID).
		Count(&n).Error
	if err != nil {
		return false, apperr.Wrap(err, "could not check purchase history")
	}
	return n > 0, nil
}

// Add stores a review and refreshes the product's rating aggregate.
func (s *ReviewService) Add(ctx context.Context, db *gorm.DB, viewer Viewer, userName string, in ReviewInput) (*models.Review, error) {
	if viewer.UserID == "" {
		return nil, apperr.UnauthorizedErr("Authentication required")
	}
	if err := checkRating(in.Rating); err != nil {
		return nil, err
	}
	productID := strings.TrimSpace(in.ProductID)

	review := &models.Review{
		ProductID: productID,
		UserID:    viewer.UserID,
		UserName:  userName,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Select("id").First(&product, "id = ?", productID).Error; err != nil {
			return notFound(err, "Product not found")
		}
		ok, err := s.CanReview(ctx, tx, viewer.UserID, productID)
		if err != nil {
			return err
		}
		if !ok {
			return &apperr.Error{
				Kind:    apperr.Forbidden,
				Message: "Only customers with a delivered and paid order can review this product",
				Details: map[string]any{"canReview": false},
			}
		}
		var existing int64
		if err := tx.Model(&models.Review{}).Where("product_id = ? AND user_id = ?", productID, viewer.UserID).Count(&existing).Error; err != nil {
			return apperr.Wrap(err, "could not check existing reviews")
		}
		if existing > 0 {
			return apperr.ConflictErr("You have already reviewed this product")
		}
		if err := tx.Create(review).Error; err != nil {
			return apperr.Wrap(err, "could not save review")
		}
		return recalcProductRating(tx, productID)
	})
	if err != nil {
		return nil, err
	}
	s.products.Invalidate(productID)
	return review, nil
}

func (s *ReviewService) loadOwned(tx *gorm.DB, viewer Viewer, id string) (*models.Review, error) {
	var r models.Review
	if err := tx.First(&r, "id = ?", strings.TrimSpace(id)).Error; err != nil {
		return nil, notFound(err, "Review not found")
	}
	if !viewer.CanSee(r.UserID) {
		return nil, apperr.ForbiddenErr("Not allowed to change this review")
	}
	return &r, nil
}

func (s *ReviewService) Update(ctx context.Context, db *gorm.DB, viewer Viewer, in ReviewUpdateInput) (*models.Review, error) {
	if in.Rating != nil {
		if err := checkRating(*in.Rating); err != nil {
			return nil, err
		}
	}
	var review *models.Review
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.loadOwned(tx, viewer, in.ReviewID)
		if err != nil {
			return err
		}
		updates := map[string]any{}
		if in.Rating != nil {
			updates["rating"] = *in.Rating
		}
		if in.Comment != nil {
			updates["comment"] = strings.TrimSpace(*in.Comment)
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.Review{}).Where("id = ?", r.ID).Updates(updates).Error; err != nil {
				return apperr.Wrap(err, "could not update review")
			}
		}
		if err := tx.First(r, "id = ?", r.ID).Error; err != nil {
			return apperr.Wrap(err, "could not reload review")
		}
		review = r
		return recalcProductRating(tx, r.ProductID)
	})
	if err != nil {
		return nil, err
	}
	s.products.Invalidate(review.ProductID)
	return review, nil
}

func (s *ReviewService) Delete(ctx context.Context, db *gorm.DB, viewer Viewer, id string) error {
	var productID string
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.loadOwned(tx, viewer, id)
		if err != nil {
			return err
		}
		productID = r.ProductID
		if err := tx.Delete(r).Error; err != nil {
			return apperr.Wrap(err, "could not delete review")
		}
		return recalcProductRating(tx, r.ProductID)
	})
	if err != nil {
		return err
	}
	s.products.Invalidate(productID)
	return nil
}

func (s *ReviewService) ListForProduct(ctx context.Context, db *gorm.DB, productID string) ([]models.Review, error) {
	var reviews []models.Review
	if err := db.WithContext(ctx).Where("product_id = ?", strings.TrimSpace(productID)).
		Order("created_at DESC").Find(&reviews).Error; err != nil {
		return nil, apperr.Wrap(err, "could not list reviews")
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	return reviews, nil
}

// recalcProductRating stores the review count and mean rating on the product.
func recalcProductRating(tx *gorm.DB, productID string) error {
	var agg struct {
		Count int64
		Avg   float64
	}
	if err := tx.Model(&models.Review{}).
		Select("COUNT(*) AS count, COALESCE(AVG(rating), 0) AS avg").
		Where("product_id = ?", productID).
		Scan(&agg).Error; err != nil {
		return apperr.Wrap(err, "could not aggregate reviews")
	}
	if err := tx.Model(&models.Product{}).Where("id = ?", productID).Updates(map[string]any{
		"num_reviews":    agg.Count,
		"average_rating": utils.Round2(agg.Avg),
	}).Error; err != nil {
		return apperr.Wrap(err, "could not update product rating")
	}
	return nil
}
