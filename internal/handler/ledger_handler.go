package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quest-api/internal/dto"
	"github.com/noah-isme/gema-quest-api/internal/middleware"
	"github.com/noah-isme/gema-quest-api/internal/service"
	"github.com/noah-isme/gema-quest-api/internal/utils"
)

// LedgerHandler exposes transaction history and reconciliation.
type LedgerHandler struct {
	service service.LedgerService
	logger  zerolog.Logger
}

// NewLedgerHandler constructs the handler.
func NewLedgerHandler(service service.LedgerService, logger zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{
		service: service,
		logger:  logger.With().Str("component", "ledger_handler").Logger(),
	}
}

// Register attaches the history route.
func (h *LedgerHandler) Register(router fiber.Router) {
	router.Get("", h.history)
}

// RegisterAdmin attaches reconciliation to the admin group.
func (h *LedgerHandler) RegisterAdmin(router fiber.Router) {
	router.Get("/profiles/:id/reconcile", h.reconcile)
}

func (h *LedgerHandler) history(c *fiber.Ctx) error {
	var req dto.TransactionHistoryRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	response, err := h.service.History(c.UserContext(), middleware.ActorFromContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err, "list transactions")
	}
	return utils.SendSuccess(c, "transactions retrieved", response)
}

func (h *LedgerHandler) reconcile(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendAppError(c, err)
	}
	repair, err := parseQueryBool(c, "repair")
	if err != nil {
		return utils.SendAppError(c, err)
	}

	report, err := h.service.Reconcile(c.UserContext(), middleware.ActorFromContext(c), id, repair)
	if err != nil {
		return handleError(c, h.logger, err, "reconcile ledger")
	}
	return utils.SendSuccess(c, "ledger reconciled", report)
}
