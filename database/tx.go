package database

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	txLocal          = "tx"
	afterCommitLocal = "afterCommit"
)

// FromCtx returns the per-request transaction opened by middlewares.Tx,
// or fallback when the route runs without one.
func FromCtx(c *fiber.Ctx, fallback *gorm.DB) *gorm.DB {
	if v := c.Locals(txLocal); v != nil {
		if tx, ok := v.(*gorm.DB); ok && tx != nil {
			return tx.WithContext(c.UserContext())
		}
	}
	return fallback.WithContext(c.UserContext())
}

// Bind stores tx on the request so FromCtx finds it.
func Bind(c *fiber.Ctx, tx *gorm.DB) {
	c.Locals(txLocal, tx)
}

// AfterCommit queues fn to run once the request transaction commits.
// Without a request transaction fn runs immediately.
func AfterCommit(c *fiber.Ctx, fn func()) {
	if c.Locals(txLocal) == nil {
		fn()
		return
	}
	queued, _ := c.Locals(afterCommitLocal).([]func())
	c.Locals(afterCommitLocal, append(queued, fn))
}

// RunAfterCommit drains the callbacks queued by AfterCommit.
func RunAfterCommit(c *fiber.Ctx) {
	queued, _ := c.Locals(afterCommitLocal).([]func())
	c.Locals(afterCommitLocal, nil)
	for _, fn := range queued {
		fn()
	}
}
