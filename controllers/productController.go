package controllers

import (
	"github.com/gofiber/fiber/v2"

	"storefront-backend/database"
	"storefront-backend/middlewares"
	"storefront-backend/services"
)

func (ctl *Controller) ListProducts(c *fiber.Ctx) error {
	f := services.ProductFilter{
		CategoryID:      c.Query("categoryId"),
		BrandID:         c.Query("brandId"),
		Search:          c.Query("q"),
		IncludeInactive: c.QueryBool("includeInactive"),
	}
	page, err := ctl.Catalog.List(c.UserContext(), ctl.db(c), viewer(c), f, pageParams(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (ctl *Controller) GetProduct(c *fiber.Ctx) error {
	p, err := ctl.Catalog.Get(c.UserContext(), ctl.db(c), viewer(c), c.Params("productId"))
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (ctl *Controller) CreateProduct(c *fiber.Ctx) error {
	var in services.ProductInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	p, err := ctl.Catalog.Create(c.UserContext(), ctl.db(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (ctl *Controller) UpdateProduct(c *fiber.Ctx) error {
	var in services.ProductPatch
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	p, err := ctl.Catalog.Update(c.UserContext(), ctl.db(c), c.Params("productId"), in)
	if err != nil {
		return err
	}
	database.AfterCommit(c, func() { ctl.Catalog.InvalidateProduct(p.ID) })
	return c.JSON(p)
}

func (ctl *Controller) DeleteProduct(c *fiber.Ctx) error {
	id := c.Params("productId")
	if err := ctl.Catalog.Delete(c.UserContext(), ctl.db(c), id); err != nil {
		return err
	}
	database.AfterCommit(c, func() { ctl.Catalog.InvalidateProduct(id) })
	return c.JSON(fiber.Map{"success": true, "message": "Product deleted"})
}

func (ctl *Controller) ListBrands(c *fiber.Ctx) error {
	brands, err := ctl.Catalog.ListBrands(c.UserContext(), ctl.db(c))
	if err != nil {
		return err
	}
	return c.JSON(brands)
}

func (ctl *Controller) CreateBrand(c *fiber.Ctx) error {
	var in services.BrandInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	b, err := ctl.Catalog.CreateBrand(c.UserContext(), ctl.db(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(b)
}

func (ctl *Controller) ListCategories(c *fiber.Ctx) error {
	cats, err := ctl.Catalog.ListCategories(c.UserContext(), ctl.db(c))
	if err != nil {
		return err
	}
	return c.JSON(cats)
}

func (ctl *Controller) CreateCategory(c *fiber.Ctx) error {
	var in services.CategoryInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	cat, err := ctl.Catalog.CreateCategory(c.UserContext(), ctl.db(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(cat)
}
