package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"gorm.io/gorm"

	"storefront-backend/config"
	"storefront-backend/controllers"
	"storefront-backend/logger"
	"storefront-backend/middlewares"
)

// NewApp builds the Fiber app with the global middleware stack and all routes.
func NewApp(cfg *config.Config, ctl *controllers.Controller, db *gorm.DB) *fiber.App {
	bodyLimit := cfg.BodyLimitMB
	if bodyLimit <= 0 {
		bodyLimit = 4
	}
	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler(cfg.IsProduction()),
		BodyLimit:    bodyLimit * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.FiberMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: cfg.AllowedOrigins != "*",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
	}))
	if cfg.RateLimitMax > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimitMax,
			Expiration: time.Duration(cfg.RateLimitWindow) * time.Second,
		}))
	}

	if cfg.Storage.Driver == "local" || cfg.Storage.Driver == "" {
		app.Static(cfg.Storage.LocalURLPrefix, cfg.Storage.LocalDir)
	}

	Register(app, ctl, db)
	return app
}

// Register wires all HTTP routes. Middleware is attached per route:
// auth first, then Idempotency, then the request transaction.
func Register(app *fiber.App, ctl *controllers.Controller, db *gorm.DB) {
	auth := ctl.Auth.Required()
	admin := middlewares.RequireAdmin()
	idem := middlewares.Idempotency(db)
	tx := middlewares.Tx(db)

	api := app.Group("/api", ctl.Auth.Optional())

	// Auth
	api.Post("/auth/register", tx, ctl.Register)
	api.Post("/auth/login", ctl.Login)
	api.Post("/auth/logout", ctl.Logout)
	api.Get("/me", auth, ctl.Me)
	api.Put("/users/:id/billing", auth, admin, tx, ctl.SetBilling)

	// Checkout and orders
	api.Post("/checkout", auth, idem, tx, ctl.PlaceOrder)
	api.Get("/orders", auth, ctl.ListOrders)
	api.Get("/orders/:orderId", auth, ctl.GetOrder)
	api.Get("/orders/:orderId/status", auth, ctl.OrderStatus)
	api.Put("/orders/:orderId", auth, idem, tx, ctl.UpdateOrder)
	api.Delete("/orders/:orderId", auth, admin, tx, ctl.DeleteOrder)

	// Invoices
	api.Get("/invoices", auth, ctl.ListInvoices)
	api.Get("/invoices/:invoiceNumber", auth, ctl.GetInvoice)
	api.Patch("/invoices/:invoiceNumber", auth, idem, tx, ctl.UpdateInvoicePayment)

	// Catalog
	api.Get("/products", ctl.ListProducts)
	api.Get("/product/:productId", ctl.GetProduct)
	api.Put("/product/:productId", auth, admin, tx, ctl.UpdateProduct)
	api.Delete("/product/:productId", auth, admin, tx, ctl.DeleteProduct)
	manage := api.Group("/products/manage", auth, admin)
	manage.Post("", tx, ctl.CreateProduct)
	manage.Get("/:productId", ctl.GetProduct)
	manage.Put("/:productId", tx, ctl.UpdateProduct)
	manage.Delete("/:productId", tx, ctl.DeleteProduct)
	api.Get("/brands", ctl.ListBrands)
	api.Post("/brands", auth, admin, tx, ctl.CreateBrand)
	api.Get("/categories", ctl.ListCategories)
	api.Post("/categories", auth, admin, tx, ctl.CreateCategory)

	// Reviews
	api.Get("/review", ctl.ListReviews)
	api.Post("/review", auth, tx, ctl.AddReview)
	api.Put("/review", auth, tx, ctl.UpdateReview)
	api.Delete("/review", auth, tx, ctl.DeleteReview)

	// Blog and newsletter
	api.Get("/blog/posts", ctl.ListPosts)
	api.Get("/blog/posts/:id", ctl.GetPost)
	api.Post("/blog/posts", auth, admin, tx, ctl.CreatePost)
	api.Put("/blog/posts/:id", auth, admin, tx, ctl.UpdatePost)
	api.Delete("/blog/posts/:id", auth, admin, tx, ctl.DeletePost)
	api.Post("/newsletter/subscribe", tx, ctl.Subscribe)
	api.Post("/newsletter/unsubscribe", tx, ctl.Unsubscribe)
	api.Get("/newsletter", auth, admin, ctl.ListSubscribers)

	// Settings and uploads
	api.Get("/delivery-settings", ctl.GetDeliverySettings)
	api.Put("/delivery-settings", auth, admin, tx, ctl.UpdateDeliverySettings)
	api.Post("/uploads", auth, ctl.Upload)
}
