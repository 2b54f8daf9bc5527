package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/service"
)

type PostHandler struct {
	s service.PostService
}

func NewPostHandler(service service.PostService) *PostHandler {
	return &PostHandler{s: service}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	var req service.CreatePostRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return errorJSON(c, fiber.StatusBadRequest, "Unable to parse post")
	}

	result, err := h.s.Create(c.Context(), GetUserID(c), &req)
	if err != nil {
		return postError(c, err)
	}

	status := fiber.StatusOK
	if result.Status == models.PostStatusScheduled {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(result)
}

func (h *PostHandler) ValidatePost(c *fiber.Ctx) error {
	var req service.CreatePostRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return errorJSON(c, fiber.StatusBadRequest, "Unable to parse post")
	}

	results, err := h.s.Validate(c.Context(), GetUserID(c), &req)
	if err != nil {
		return postError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(results)
}

func (h *PostHandler) History(c *fiber.Ctx) error {
	history, err := h.s.History(c.Context(), GetUserID(c), c.QueryInt("limit", 50))
	if err != nil {
		slog.Info(err.Error())
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to list posting history")
	}
	return c.Status(fiber.StatusOK).JSON(history)
}

func postError(c *fiber.Ctx, err error) error {
	var invalid *service.InvalidPostError
	switch {
	case errors.As(err, &invalid):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   err.Error(),
			"results": invalid.Results,
		})
	case errors.Is(err, service.ErrNoAccounts):
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAccountNotFound):
		return errorJSON(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSchedulerUnavailable):
		return errorJSON(c, fiber.StatusServiceUnavailable, err.Error())
	}
	slog.Info(err.Error())
	return errorJSON(c, fiber.StatusInternalServerError, "Unable to publish post")
}
