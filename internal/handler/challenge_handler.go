package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quest-api/internal/dto"
	"github.com/noah-isme/gema-quest-api/internal/middleware"
	"github.com/noah-isme/gema-quest-api/internal/service"
	"github.com/noah-isme/gema-quest-api/internal/utils"
)

// ChallengeHandler manages challenge endpoints.
type ChallengeHandler struct {
	service service.ChallengeService
	logger  zerolog.Logger
}

// NewChallengeHandler builds a challenge handler instance.
func NewChallengeHandler(service service.ChallengeService, logger zerolog.Logger) *ChallengeHandler {
	return &ChallengeHandler{
		service: service,
		logger:  logger.With().Str("component", "challenge_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ChallengeHandler) Register(router fiber.Router) {
	router.Get("", h.listSubmittable)
	router.Post("", h.create)
	router.Get("/mine", h.listMine)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
}

func (h *ChallengeHandler) listSubmittable(c *fiber.Ctx) error {
	var req dto.ChallengeListRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	response, err := h.service.ListSubmittable(c.UserContext(), middleware.ActorFromContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err, "list challenges")
	}
	return utils.OK(c, response.Items, "challenges retrieved", response.Pagination)
}

func (h *ChallengeHandler) listMine(c *fiber.Ctx) error {
	var req dto.ChallengeListRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	response, err := h.service.ListMine(c.UserContext(), middleware.ActorFromContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err, "list own challenges")
	}
	return utils.OK(c, response.Items, "challenges retrieved", response.Pagination)
}

func (h *ChallengeHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendAppError(c, err)
	}

	challenge, err := h.service.Get(c.UserContext(), middleware.ActorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "load challenge")
	}
	return utils.SendSuccess(c, "challenge retrieved", challenge)
}

func (h *ChallengeHandler) create(c *fiber.Ctx) error {
	var payload dto.ChallengeCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	challenge, err := h.service.Create(c.UserContext(), middleware.ActorFromContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err, "create challenge")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "challenge created", challenge)
}

func (h *ChallengeHandler) update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendAppError(c, err)
	}

	var payload dto.ChallengeUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	challenge, err := h.service.Update(c.UserContext(), middleware.ActorFromContext(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "update challenge")
	}
	return utils.SendSuccess(c, "challenge updated", challenge)
}
