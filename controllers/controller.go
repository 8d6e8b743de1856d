// Package controllers holds the Fiber handlers. Handlers parse the request,
// call a service with the request transaction and shape the JSON response.
package controllers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"storefront-backend/database"
	"storefront-backend/events"
	"storefront-backend/middlewares"
	"storefront-backend/services"
	"storefront-backend/storage"
	"storefront-backend/utils"
)

// Controller carries the dependencies shared by every handler.
type Controller struct {
	DB          *gorm.DB
	Auth        *middlewares.Auth
	Storage     storage.Storage
	Broadcaster *events.Broadcaster

	Checkout *services.CheckoutService
	Orders   *services.OrderService
	Invoices *services.InvoiceService
	Reviews  *services.ReviewService
	Catalog  *services.CatalogService
	Delivery *services.DeliveryService
	Content  *services.ContentService
	Users    *services.UserService
}

// db returns the request transaction when one is open.
func (ctl *Controller) db(c *fiber.Ctx) *gorm.DB {
	return database.FromCtx(c, ctl.DB)
}

func viewer(c *fiber.Ctx) services.Viewer {
	return services.Viewer{UserID: middlewares.UserID(c), IsAdmin: middlewares.IsAdmin(c)}
}

func pageParams(c *fiber.Ctx) utils.PageParams {
	return utils.NewPageParams(
		utils.ParseIntDefault(c.Query("page"), 1),
		utils.ParseIntDefault(c.Query("pageSize"), utils.DefaultPageSize),
	)
}
