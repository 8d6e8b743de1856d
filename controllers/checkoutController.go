package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"storefront-backend/database"
	"storefront-backend/services"
)

// PlaceOrder places an order. The confirmation email goes out after the
// request transaction commits.
func (ctl *Controller) PlaceOrder(c *fiber.Ctx) error {
	var req services.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	res, err := ctl.Checkout.Checkout(c.UserContext(), ctl.db(c), viewer(c).UserID, req)
	if err != nil {
		return err
	}
	database.AfterCommit(c, func() {
		go ctl.Checkout.SendConfirmation(context.Background(), res)
	})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":        true,
		"orderId":        res.OrderID,
		"orderReference": res.OrderReference,
		"invoiceNumber":  res.InvoiceNumber,
	})
}
