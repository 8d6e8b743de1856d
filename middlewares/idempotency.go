package middlewares

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"storefront-backend/apperr"
	"storefront-backend/logger"
	"storefront-backend/models"
)

const idempotencyHeader = "Idempotency-Key"

// Idempotency replays the stored response for a repeated Idempotency-Key on
// mutating methods. It must run after auth and before Tx so the key record is
// not tied to the handler transaction.
func Idempotency(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := strings.ToUpper(c.Method())
		if method != fiber.MethodPost && method != fiber.MethodPut && method != fiber.MethodPatch && method != fiber.MethodDelete {
			return c.Next()
		}

		key := strings.TrimSpace(c.Get(idempotencyHeader))
		if key == "" {
			return c.Next()
		}
		if len(key) > 128 {
			return apperr.InvalidErr("Idempotency-Key too long", map[string]any{"maxLength": 128})
		}

		userID := UserID(c)
		path := c.OriginalURL()

		// Deterministic request hash: method|path|body|user
		h := sha256.New()
		h.Write([]byte(method))
		h.Write([]byte{'\n'})
		h.Write([]byte(path))
		h.Write([]byte{'\n'})
		h.Write(c.Body())
		h.Write([]byte{'\n'})
		h.Write([]byte(userID))
		reqHash := hex.EncodeToString(h.Sum(nil))

		// Phase 1: read or create the pending record.
		var existing models.IdempotencyKey
		err := db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			err := tx.Where("idempotency_key = ?", key).First(&existing).Error
			if err == nil {
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Wrap(err, "idempotency lookup failed")
			}
			rec := models.IdempotencyKey{
				Key:         key,
				RequestHash: reqHash,
				Method:      method,
				Path:        path,
				UserID:      userID,
			}
			if err := tx.Create(&rec).Error; err != nil {
				// unique race: read the winner
				if e := tx.Where("idempotency_key = ?", key).First(&existing).Error; e != nil {
					return apperr.Wrap(err, "idempotency create failed")
				}
				return nil
			}
			existing = rec
			return nil
		})
		if err != nil {
			return err
		}

		if existing.RequestHash != reqHash {
			return apperr.ConflictErr("Idempotency-Key reuse with different request")
		}
		if existing.ResponseStatus != 0 && existing.ResponseBody != nil {
			c.Set("Idempotent-Replay", "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(existing.ResponseStatus).Send(existing.ResponseBody)
		}

		if err := c.Next(); err != nil {
			return err
		}

		// Phase 2: store the response. Failures here never break the request.
		now := time.Now().UTC()
		resp := c.Response().Body()
		blob := make([]byte, len(resp))
		copy(blob, resp)
		if err := db.WithContext(c.UserContext()).Model(&models.IdempotencyKey{}).
			Where("idempotency_key = ?", key).
			Updates(map[string]any{
				"response_status": c.Response().StatusCode(),
				"response_body":   blob,
				"completed_at":    &now,
			}).Error; err != nil {
			logger.WithRequest(c).WithError(err).Warn("could not store idempotent response")
		}
		return nil
	}
}
