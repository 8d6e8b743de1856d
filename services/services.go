// Package services holds the storefront business rules. Methods receive the
// *gorm.DB to run against, which may already be a request transaction; every
// multi-row write opens its own (nested) transaction on it.
package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"storefront-backend/apperr"
)

// Viewer identifies who is asking.
type Viewer struct {
	UserID  string
	IsAdmin bool
}

// CanSee reports whether the viewer may read a record owned by ownerID.
func (v Viewer) CanSee(ownerID string) bool {
	return v.IsAdmin || (v.UserID != "" && v.UserID == ownerID)
}

// Clock returns the current time; tests replace it.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

func notFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFoundErr(msg)
	}
	return apperr.Wrap(err, msg)
}
