package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"storefront-backend/apperr"
	"storefront-backend/database"
	"storefront-backend/middlewares"
	"storefront-backend/services"
)

// ListReviews returns a product's reviews and, for a signed-in user, whether
// they may write one.
func (ctl *Controller) ListReviews(c *fiber.Ctx) error {
	productID := strings.TrimSpace(c.Query("productId"))
	if productID == "" {
		return apperr.InvalidErr("productId is required", map[string]any{"missingFields": []string{"productId"}})
	}
	reviews, err := ctl.Reviews.ListForProduct(c.UserContext(), ctl.db(c), productID)
	if err != nil {
		return err
	}
	canReview, err := ctl.Reviews.CanReview(c.UserContext(), ctl.db(c), middlewares.UserID(c), productID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"reviews": reviews, "canReview": canReview})
}

func (ctl *Controller) AddReview(c *fiber.Ctx) error {
	var in services.ReviewInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	v := viewer(c)
	user, err := ctl.Users.Get(c.UserContext(), ctl.db(c), v, v.UserID)
	if err != nil {
		return err
	}
	review, err := ctl.Reviews.Add(c.UserContext(), ctl.db(c), v, user.FullName(), in)
	if err != nil {
		if ae, ok := apperr.As(err); ok && ae.Kind == apperr.Forbidden {
			if can, ok := ae.Details["canReview"]; ok {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": ae.Message, "canReview": can})
			}
		}
		return err
	}
	database.AfterCommit(c, func() { ctl.Catalog.InvalidateProduct(review.ProductID) })
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "review": review})
}

func (ctl *Controller) UpdateReview(c *fiber.Ctx) error {
	var in services.ReviewUpdateInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	review, err := ctl.Reviews.Update(c.UserContext(), ctl.db(c), viewer(c), in)
	if err != nil {
		return err
	}
	database.AfterCommit(c, func() { ctl.Catalog.InvalidateProduct(review.ProductID) })
	return c.JSON(fiber.Map{"success": true, "review": review})
}

// DeleteReview takes the review id from ?reviewId= or the JSON body.
func (ctl *Controller) DeleteReview(c *fiber.Ctx) error {
	id := c.Query("reviewId")
	if id == "" && len(c.Body()) > 0 {
		var body struct {
			ReviewID string `json:"reviewId"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		id = body.ReviewID
	}
	if strings.TrimSpace(id) == "" {
		return apperr.InvalidErr("reviewId is required", map[string]any{"missingFields": []string{"reviewId"}})
	}
	if err := ctl.Reviews.Delete(c.UserContext(), ctl.db(c), viewer(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Review deleted"})
}
