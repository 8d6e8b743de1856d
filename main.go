package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-backend/cache"
	"storefront-backend/config"
	"storefront-backend/controllers"
	"storefront-backend/database"
	"storefront-backend/events"
	"storefront-backend/logger"
	"storefront-backend/mailer"
	"storefront-backend/middlewares"
	"storefront-backend/models"
	"storefront-backend/refs"
	"storefront-backend/routes"
	"storefront-backend/services"
	"storefront-backend/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("could not load config")
	}
	if err := logger.Init(cfg.Log); err != nil {
		logger.WithError(err).Fatal("could not init logger")
	}
	log := logger.WithModule("main")

	// ---- Database
	db, err := database.Connect(cfg)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	if err := database.AutoMigrate(db); err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	// ---- Collaborators
	gen, err := refs.NewGenerator(cfg.SnowflakeNode)
	if err != nil {
		log.WithError(err).Fatal("could not create reference generator")
	}
	store, err := storage.FromConfig(context.Background(), cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("could not init storage")
	}
	mail := mailer.FromConfig(cfg.SMTP)
	bus := events.NewBus()
	broadcaster := events.NewBroadcaster()
	products := cache.New[string, models.Product]()

	// ---- Services
	delivery := services.NewDeliveryService(cache.New[uint, models.DeliverySettings]())
	recalc := services.NewInvoiceRecalculator()
	recalc.Register(bus)

	ctl := &controllers.Controller{
		DB:          db,
		Auth:        middlewares.NewAuth(cfg),
		Storage:     store,
		Broadcaster: broadcaster,
		Checkout:    services.NewCheckoutService(gen, delivery, recalc, mail),
		Orders:      services.NewOrderService(delivery, bus, broadcaster, recalc),
		Invoices:    services.NewInvoiceService(recalc),
		Reviews:     services.NewReviewService(products),
		Catalog:     services.NewCatalogService(products),
		Delivery:    delivery,
		Content:     services.NewContentService(),
		Users:       services.NewUserService(),
	}

	app := routes.NewApp(cfg, ctl, db)

	// ---- Start
	go func() {
		log.WithField("port", cfg.Port).WithField("storage", store).Info("API server starting")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Warn("shutdown incomplete")
	}
}
