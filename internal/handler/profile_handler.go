package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quest-api/internal/dto"
	"github.com/noah-isme/gema-quest-api/internal/middleware"
	"github.com/noah-isme/gema-quest-api/internal/service"
	"github.com/noah-isme/gema-quest-api/internal/utils"
)

// ProfileHandler exposes the caller's profile and admin role management.
type ProfileHandler struct {
	service service.ProfileService
	logger  zerolog.Logger
}

// NewProfileHandler constructs the handler.
func NewProfileHandler(service service.ProfileService, logger zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{
		service: service,
		logger:  logger.With().Str("component", "profile_handler").Logger(),
	}
}

// Register attaches the self-service routes.
func (h *ProfileHandler) Register(router fiber.Router) {
	router.Get("/me", h.me)
	router.Patch("/me", h.updateMe)
}

// RegisterAdmin attaches role management to the admin group.
func (h *ProfileHandler) RegisterAdmin(router fiber.Router) {
	router.Patch("/profiles/:id/role", h.setRole)
}

func (h *ProfileHandler) me(c *fiber.Ctx) error {
	profile, err := h.service.Me(c.UserContext(), middleware.ActorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "load profile")
	}
	return utils.SendSuccess(c, "profile retrieved", profile)
}

func (h *ProfileHandler) updateMe(c *fiber.Ctx) error {
	var payload dto.ProfileUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	profile, err := h.service.UpdateName(c.UserContext(), middleware.ActorFromContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err, "update profile")
	}
	return utils.SendSuccess(c, "profile updated", profile)
}

func (h *ProfileHandler) setRole(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendAppError(c, err)
	}

	var payload dto.RoleUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	profile, err := h.service.SetRole(c.UserContext(), middleware.ActorFromContext(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "change role")
	}
	return utils.SendSuccess(c, "role updated", profile)
}
