package middlewares

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"storefront-backend/database"
	"storefront-backend/logger"
)

// Tx opens a per-request DB transaction for mutating methods. The handler
// chain reads it with database.FromCtx. Callbacks queued with
// database.AfterCommit run once the commit succeeds.
// Order: run AFTER auth and AFTER Idempotency.
func Tx(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		switch c.Method() {
		case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete:
		default:
			return c.Next()
		}

		tx := db.WithContext(c.UserContext()).Begin()
		if tx.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to begin transaction")
		}

		// Ensure we always cleanup.
		defer func() {
			if r := recover(); r != nil {
				_ = tx.Rollback()
				panic(r) // re-panic after rollback so the recover middleware sees it
			}
			if err != nil {
				_ = tx.Rollback()
				return
			}
			if e := tx.Commit().Error; e != nil {
				logger.WithRequest(c).WithError(e).Error("tx commit failed")
				err = fiber.NewError(fiber.StatusInternalServerError, "transaction commit failed")
				return
			}
			database.RunAfterCommit(c)
		}()

		database.Bind(c, tx)
		err = c.Next()
		return err
	}
}
