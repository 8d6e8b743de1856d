package controllers

import (
	"github.com/gofiber/fiber/v2"

	"storefront-backend/database"
	"storefront-backend/middlewares"
	"storefront-backend/services"
)

func (ctl *Controller) ListOrders(c *fiber.Ctx) error {
	page, err := ctl.Orders.List(c.UserContext(), ctl.db(c), viewer(c), c.Query("status"), pageParams(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (ctl *Controller) GetOrder(c *fiber.Ctx) error {
	order, err := ctl.Orders.Get(c.UserContext(), ctl.db(c), viewer(c), c.Params("orderId"))
	if err != nil {
		return err
	}
	return c.JSON(order)
}

// UpdateOrder applies a payment proof or a status change. Polling clients
// see the new status once the transaction commits.
func (ctl *Controller) UpdateOrder(c *fiber.Ctx) error {
	var in services.OrderUpdateInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	res, err := ctl.Orders.Update(c.UserContext(), ctl.db(c), viewer(c), c.Params("orderId"), in)
	if err != nil {
		return err
	}
	if res.StatusChanged {
		database.AfterCommit(c, func() { ctl.Orders.Announce(res.Order) })
	}
	return c.JSON(fiber.Map{"success": true, "order": res.Order})
}

func (ctl *Controller) DeleteOrder(c *fiber.Ctx) error {
	if err := ctl.Orders.Delete(c.UserContext(), ctl.db(c), viewer(c), c.Params("orderId")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Order deleted"})
}

// OrderStatus returns the last status announced for the order.
func (ctl *Controller) OrderStatus(c *fiber.Ctx) error {
	order, err := ctl.Orders.Get(c.UserContext(), ctl.db(c), viewer(c), c.Params("orderId"))
	if err != nil {
		return err
	}
	if u, ok := ctl.Broadcaster.Latest(order.ID); ok {
		return c.JSON(u)
	}
	return c.JSON(fiber.Map{"orderId": order.ID, "status": order.Status, "at": order.UpdatedAt})
}
