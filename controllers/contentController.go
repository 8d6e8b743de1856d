package controllers

import (
	"github.com/gofiber/fiber/v2"

	"storefront-backend/middlewares"
	"storefront-backend/services"
)

func (ctl *Controller) ListPosts(c *fiber.Ctx) error {
	page, err := ctl.Content.ListPosts(c.UserContext(), ctl.db(c), viewer(c), c.Query("tag"), pageParams(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (ctl *Controller) GetPost(c *fiber.Ctx) error {
	post, err := ctl.Content.GetPost(c.UserContext(), ctl.db(c), viewer(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(post)
}

func (ctl *Controller) CreatePost(c *fiber.Ctx) error {
	var in services.BlogPostInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	post, err := ctl.Content.CreatePost(c.UserContext(), ctl.db(c), viewer(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

func (ctl *Controller) UpdatePost(c *fiber.Ctx) error {
	var in services.BlogPostPatch
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	post, err := ctl.Content.UpdatePost(c.UserContext(), ctl.db(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(post)
}

func (ctl *Controller) DeletePost(c *fiber.Ctx) error {
	if err := ctl.Content.DeletePost(c.UserContext(), ctl.db(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Post deleted"})
}

func (ctl *Controller) Subscribe(c *fiber.Ctx) error {
	var in services.SubscribeInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	sub, created, err := ctl.Content.Subscribe(c.UserContext(), ctl.db(c), in)
	if err != nil {
		return err
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"success": true, "subscriber": sub})
}

func (ctl *Controller) Unsubscribe(c *fiber.Ctx) error {
	var in services.UnsubscribeInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := ctl.Content.Unsubscribe(c.UserContext(), ctl.db(c), in); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

func (ctl *Controller) ListSubscribers(c *fiber.Ctx) error {
	activeOnly := c.QueryBool("active", true)
	page, err := ctl.Content.ListSubscribers(c.UserContext(), ctl.db(c), activeOnly, pageParams(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}
