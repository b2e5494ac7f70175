package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quest-api/internal/dto"
	"github.com/noah-isme/gema-quest-api/internal/middleware"
	"github.com/noah-isme/gema-quest-api/internal/service"
	"github.com/noah-isme/gema-quest-api/internal/utils"
)

// SubmissionHandler manages submission endpoints.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group. Writes can be
// throttled separately from reads.
func (h *SubmissionHandler) Register(router fiber.Router, submitLimiter, reviewLimiter fiber.Handler) {
	router.Post("", chain(submitLimiter, h.create)...)
	router.Get("/mine", h.listMine)
	router.Get("/review-queue", h.reviewQueue)
	router.Get("/review-history", h.reviewHistory)
	router.Get("/:id", h.get)
	router.Post("/:id/review", chain(reviewLimiter, h.review)...)
}

func chain(limiter fiber.Handler, handler fiber.Handler) []fiber.Handler {
	if limiter == nil {
		return []fiber.Handler{handler}
	}
	return []fiber.Handler{limiter, handler}
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	var payload dto.SubmissionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	submission, err := h.service.Create(c.UserContext(), middleware.ActorFromContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err, "create submission")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission created", submission)
}

func (h *SubmissionHandler) review(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendAppError(c, err)
	}

	var payload dto.SubmissionReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	submission, err := h.service.Review(c.UserContext(), middleware.ActorFromContext(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "review submission")
	}
	return utils.SendSuccess(c, "submission reviewed", submission)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendAppError(c, err)
	}

	submission, err := h.service.Get(c.UserContext(), middleware.ActorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "load submission")
	}
	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) listMine(c *fiber.Ctx) error {
	var req dto.SubmissionListRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	submissions, err := h.service.ListMine(c.UserContext(), middleware.ActorFromContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err, "list submissions")
	}
	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) reviewQueue(c *fiber.Ctx) error {
	submissions, err := h.service.ReviewQueue(c.UserContext(), middleware.ActorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "list review queue")
	}
	return utils.SendSuccess(c, "review queue retrieved", submissions)
}

func (h *SubmissionHandler) reviewHistory(c *fiber.Ctx) error {
	var req dto.ReviewHistoryRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	submissions, err := h.service.ReviewHistory(c.UserContext(), middleware.ActorFromContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err, "list review history")
	}
	return utils.SendSuccess(c, "review history retrieved", submissions)
}
