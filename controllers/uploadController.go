package controllers

import (
	"github.com/gofiber/fiber/v2"

	"storefront-backend/apperr"
	"storefront-backend/logger"
	"storefront-backend/storage"
)

// Upload stores a multipart "file" and returns its public URL.
func (ctl *Controller) Upload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return apperr.InvalidErr("File is required", map[string]any{"missingFields": []string{"file"}})
	}
	if storage.AllowedExt(fh.Filename) == "" {
		return apperr.InvalidErr("Unsupported file type", map[string]any{"file": fh.Filename})
	}
	f, err := fh.Open()
	if err != nil {
		return apperr.Wrap(err, "could not read upload")
	}
	defer f.Close()

	res, err := ctl.Storage.Put(c.UserContext(), f, storage.PutInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
	})
	if err != nil {
		return apperr.Wrap(err, "could not store upload")
	}
	logger.WithRequest(c).WithField("key", res.Key).Info("file uploaded")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"secure_url": res.URL, "key": res.Key})
}
