package handlers

import (
	"errors"
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/service"
)

type MediaHandler struct {
	s service.MediaService
}

func NewMediaHandler(service service.MediaService) *MediaHandler {
	return &MediaHandler{s: service}
}

// UploadMedia stages one file from the "file" form field and returns the
// media item to attach to a post.
func (h *MediaHandler) UploadMedia(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "No file selected")
	}
	f, err := fh.Open()
	if err != nil {
		slog.Info(err.Error())
		return errorJSON(c, fiber.StatusBadRequest, "Unable to read file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Info(err.Error())
		return errorJSON(c, fiber.StatusBadRequest, "Unable to read file")
	}

	item, err := h.s.Upload(c.Context(), GetUserID(c), fh.Filename, data)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedMedia) {
			return errorJSON(c, fiber.StatusUnsupportedMediaType, err.Error())
		}
		slog.Info(err.Error())
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to upload file")
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}
