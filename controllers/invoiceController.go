package controllers

import (
	"github.com/gofiber/fiber/v2"

	"storefront-backend/services"
)

func (ctl *Controller) ListInvoices(c *fiber.Ctx) error {
	page, err := ctl.Invoices.List(c.UserContext(), ctl.db(c), viewer(c), pageParams(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (ctl *Controller) GetInvoice(c *fiber.Ctx) error {
	inv, err := ctl.Invoices.Get(c.UserContext(), ctl.db(c), viewer(c), c.Params("invoiceNumber"))
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

func (ctl *Controller) UpdateInvoicePayment(c *fiber.Ctx) error {
	var in services.InvoicePaymentInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	inv, err := ctl.Invoices.UpdatePayment(c.UserContext(), ctl.db(c), viewer(c), c.Params("invoiceNumber"), in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "invoice": inv})
}
