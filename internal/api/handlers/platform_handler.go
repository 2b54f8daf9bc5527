package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/social"
)

type PlatformHandler struct {
	s   service.AccountService
	cfg config.Config
}

func NewPlatformHandler(s service.AccountService, cfg config.Config) *PlatformHandler {
	return &PlatformHandler{
		s:   s,
		cfg: cfg,
	}
}

type platformInfo struct {
	Platform social.Platform `json:"platform"`
	Limits   social.Limits   `json:"limits"`
}

// ListPlatforms returns the configured platforms with their posting limits.
func (h *PlatformHandler) ListPlatforms(c *fiber.Ctx) error {
	m := h.s.Manager(GetUserID(c))
	var out []platformInfo
	for _, platform := range h.s.Platforms() {
		p, err := m.Provider(platform)
		if err != nil {
			continue
		}
		out = append(out, platformInfo{Platform: platform, Limits: p.Limits()})
	}
	return c.Status(fiber.StatusOK).JSON(out)
}

func (h *PlatformHandler) AddSocialAccount(c *fiber.Ctx) error {
	platform, err := social.ParsePlatform(c.Params("platform"))
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	authURL, err := h.s.AuthURL(c.Context(), GetUserID(c), platform)
	if err != nil {
		slog.Info(err.Error())
		if social.ErrorCode(err) == social.CodeUnsupportedPlatform {
			return errorJSON(c, fiber.StatusNotFound, err.Error())
		}
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to start account linking")
	}
	return c.Redirect(authURL)
}

func (h *PlatformHandler) CallbackHandler(c *fiber.Ctx) error {
	platform, err := social.ParsePlatform(c.Params("platform"))
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	redirectURL := fmt.Sprintf("%s/dashboard/accounts", h.cfg.FrontendURL)
	if denied := c.Query("error"); denied != "" {
		return c.Redirect(redirectURL+"?error="+url.QueryEscape(denied), fiber.StatusTemporaryRedirect)
	}

	code := c.Query("code")
	if code == "" {
		return errorJSON(c, fiber.StatusBadRequest, "Missing authorization code")
	}

	if _, err := h.s.Callback(c.Context(), platform, code, c.Query("state")); err != nil {
		slog.Info(err.Error())
		if errors.Is(err, service.ErrInvalidState) {
			return errorJSON(c, fiber.StatusBadRequest, "Unable to validate user")
		}
		return errorJSON(c, fiber.StatusBadRequest, "Something went wrong")
	}

	return c.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
}

func (h *PlatformHandler) ListSocialAccounts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accountList, err := h.s.List(c.Context(), userID)
	if err != nil {
		slog.Info(err.Error())
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to fetch social accounts")
	}

	return c.Status(fiber.StatusOK).JSON(accountList)
}

func (h *PlatformHandler) DeleteSocialAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)
	accountID := c.QueryInt("id", 0)

	err := h.s.Disconnect(c.Context(), userID, int64(accountID))
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) || errors.Is(err, repository.ErrNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "Social account not found")
		}
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to delete social account")
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PlatformHandler) AccountStatuses(c *fiber.Ctx) error {
	statuses, err := h.s.CheckStatuses(c.Context(), GetUserID(c))
	if err != nil {
		slog.Info(err.Error())
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to check accounts")
	}
	return c.Status(fiber.StatusOK).JSON(statuses)
}
