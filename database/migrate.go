package database

import (
	"fmt"

	"gorm.io/gorm"

	"storefront-backend/models"
)

// AutoMigrate applies (idempotent) schema migrations:
// - AutoMigrate (tables/columns/index tags)
// - CHECK constraints on money and rating columns (postgres only)
func AutoMigrate(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&models.User{},
			&models.Brand{},
			&models.Category{},
			&models.Product{},
			&models.Order{},
			&models.OrderItem{},
			&models.Invoice{},
			&models.InvoiceItem{},
			&models.DeliverySettings{},
			&models.Review{},
			&models.BlogPost{},
			&models.NewsletterSubscriber{},
			&models.IdempotencyKey{},
			&models.ReferenceCounter{},
		); err != nil {
			return fmt.Errorf("automigrate failed: %w", err)
		}

		if tx.Dialector.Name() != "postgres" {
			return nil
		}

		checks := []struct{ table, name, expr string }{
			{"products", "chk_products_price_nonneg", "price >= 0"},
			{"order_items", "chk_order_items_quantity_pos", "quantity > 0"},
			{"orders", "chk_orders_total_nonneg", "total >= 0"},
			{"invoices", "chk_invoices_amount_nonneg", "amount >= 0"},
			{"reviews", "chk_reviews_rating_range", "rating BETWEEN 1 AND 5"},
		}
		for _, c := range checks {
			stmt := fmt.Sprintf(`DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_constraint
		WHERE conrelid = '%s'::regclass
		  AND conname  = '%s'
	) THEN
		ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s);
	END IF;
END $$;`, c.table, c.name, c.table, c.name, c.expr)
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed on %s: %w", c.name, err)
			}
		}
		return nil
	})
}
