package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"storefront-backend/apperr"
	"storefront-backend/middlewares"
	"storefront-backend/models"
	"storefront-backend/services"
)

func (ctl *Controller) Register(c *fiber.Ctx) error {
	var in services.RegisterInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	user, err := ctl.Users.Register(c.UserContext(), ctl.db(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "user": user})
}

func (ctl *Controller) Login(c *fiber.Ctx) error {
	var in services.LoginInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	user, err := ctl.Users.Login(c.UserContext(), ctl.db(c), in)
	if err != nil {
		return err
	}
	return ctl.startSession(c, user)
}

func (ctl *Controller) startSession(c *fiber.Ctx, user *models.User) error {
	token, exp, err := ctl.Auth.Issue(user)
	if err != nil {
		return apperr.Wrap(err, "could not sign session")
	}
	c.Cookie(&fiber.Cookie{
		Name:     ctl.Auth.CookieName(),
		Value:    token,
		Expires:  exp,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{"success": true, "token": token, "expiresAt": exp, "user": user})
}

func (ctl *Controller) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     ctl.Auth.CookieName(),
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})
	return c.JSON(fiber.Map{"success": true})
}

// Me returns the signed-in user.
func (ctl *Controller) Me(c *fiber.Ctx) error {
	v := viewer(c)
	user, err := ctl.Users.Get(c.UserContext(), ctl.db(c), v, v.UserID)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func (ctl *Controller) SetBilling(c *fiber.Ctx) error {
	var in services.BillingInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	user, err := ctl.Users.SetBilling(c.UserContext(), ctl.db(c), viewer(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "user": user})
}
