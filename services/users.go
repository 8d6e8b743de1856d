package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"storefront-backend/apperr"
	"storefront-backend/models"
)

const RoleCustomer = "customer"

type RegisterInput struct {
	FirstName       string `json:"firstName" validate:"required,max=100"`
	LastName        string `json:"lastName" validate:"max=100"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"max=40"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type BillingInput struct {
	IsPeriodPaidUser *bool   `json:"isPeriodPaidUser"`
	PaymentPeriod    *string `json:"paymentPeriod"`
}

type UserService struct{}

func NewUserService() *UserService { return &UserService{} }

func (s *UserService) Register(ctx context.Context, db *gorm.DB, in RegisterInput) (*models.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if in.Password != in.PasswordConfirm {
		return nil, apperr.InvalidErr("Passwords do not match", map[string]any{"passwordConfirm": "must match password"})
	}

	user := &models.User{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     email,
		Phone:     strings.TrimSpace(in.Phone),
		Role:      RoleCustomer,
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, apperr.Wrap(err, "could not hash password")
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
			return apperr.Wrap(err, "could not check email")
		}
		if n > 0 {
			return apperr.ConflictErr("Email already exists")
		}
		if err := tx.Create(user).Error; err != nil {
			return apperr.Wrap(err, "could not create user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks the credentials. Unknown emails and wrong passwords fail
// with the same error.
func (s *UserService) Login(ctx context.Context, db *gorm.DB, in LoginInput) (*models.User, error) {
	invalid := apperr.UnauthorizedErr("Invalid credentials")
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, invalid
	}
	var user models.User
	if err := db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid
		}
		return nil, apperr.Wrap(err, "could not look up user")
	}
	if err := user.ComparePassword(in.Password); err != nil {
		return nil, invalid
	}
	return &user, nil
}

func (s *UserService) Get(ctx context.Context, db *gorm.DB, viewer Viewer, id string) (*models.User, error) {
	if !viewer.CanSee(id) {
		return nil, apperr.ForbiddenErr("Not allowed to view this user")
	}
	var user models.User
	if err := db.WithContext(ctx).First(&user, "id = ?", strings.TrimSpace(id)).Error; err != nil {
		return nil, notFound(err, "User not found")
	}
	return &user, nil
}

// SetBilling switches a user between one-time and period billing.
func (s *UserService) SetBilling(ctx context.Context, db *gorm.DB, viewer Viewer, id string, in BillingInput) (*models.User, error) {
	if !viewer.IsAdmin {
		return nil, apperr.ForbiddenErr("Only admins can change billing settings")
	}
	updates := map[string]any{}
	if in.PaymentPeriod != nil {
		period := strings.ToLower(strings.TrimSpace(*in.PaymentPeriod))
		if period != "" && period != models.PaymentPeriodWeekly && period != models.PaymentPeriodMonthly {
			return nil, apperr.InvalidErr("Invalid payment period", map[string]any{
				"paymentPeriod": *in.PaymentPeriod,
				"allowed":       []string{models.PaymentPeriodWeekly, models.PaymentPeriodMonthly},
			})
		}
		updates["payment_period"] = period
	}
	if in.IsPeriodPaidUser != nil {
		updates["is_period_paid_user"] = *in.IsPeriodPaidUser
	}
	if len(updates) == 0 {
		return nil, apperr.InvalidErr("Nothing to update", map[string]any{"fields": []string{"isPeriodPaidUser", "paymentPeriod"}})
	}

	var user models.User
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", strings.TrimSpace(id)).Error; err != nil {
			return notFound(err, "User not found")
		}
		enabled, period := user.IsPeriodPaidUser, user.PaymentPeriod
		if v, ok := updates["is_period_paid_user"].(bool); ok {
			enabled = v
		}
		if v, ok := updates["payment_period"].(string); ok {
			period = v
		}
		if enabled && period == "" {
			return apperr.InvalidErr("Period billing needs a payment period", map[string]any{"paymentPeriod": "required when isPeriodPaidUser is true"})
		}
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return apperr.Wrap(err, "could not update billing settings")
		}
		return tx.First(&user, "id = ?", user.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
