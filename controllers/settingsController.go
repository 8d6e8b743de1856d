package controllers

import (
	"github.com/gofiber/fiber/v2"

	"storefront-backend/database"
	"storefront-backend/middlewares"
	"storefront-backend/services"
)

func (ctl *Controller) GetDeliverySettings(c *fiber.Ctx) error {
	s, err := ctl.Delivery.Get(c.UserContext(), ctl.db(c))
	if err != nil {
		return err
	}
	return c.JSON(s)
}

func (ctl *Controller) UpdateDeliverySettings(c *fiber.Ctx) error {
	var in services.DeliverySettingsInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	s, err := ctl.Delivery.Update(c.UserContext(), ctl.db(c), in)
	if err != nil {
		return err
	}
	// readers may have cached the old row before commit
	database.AfterCommit(c, ctl.Delivery.Invalidate)
	return c.JSON(fiber.Map{"success": true, "settings": s})
}
