package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/phdtrack/phdtrack-api/internal/dto"
	"github.com/phdtrack/phdtrack-api/internal/service"
	"github.com/phdtrack/phdtrack-api/internal/utils"
)

// StudentHandler wires the supervisor-only account management endpoints.
type StudentHandler struct {
	accounts service.AccountService
	progress service.ProgressService
	logger   zerolog.Logger
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(accounts service.AccountService, progress service.ProgressService, logger zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		accounts: accounts,
		progress: progress,
		logger:   logger.With().Str("component", "student_handler").Logger(),
	}
}

// Register attaches the account management routes. The surrounding group is
// expected to enforce the supervisor role.
func (h *StudentHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Delete("/:id", h.delete)
	router.Post("/:id/rename", h.rename)
	router.Post("/:id/reset-password", h.resetPassword)
	router.Put("/:id/remarks", h.setRemarks)
}

func (h *StudentHandler) list(c *fiber.Ctx) error {
	identifiers, err := h.progress.ListStudents(c.Context())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list students")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list students")
	}

	return utils.SendSuccess(c, "students retrieved", fiber.Map{"students": identifiers})
}

func (h *StudentHandler) create(c *fiber.Ctx) error {
	var payload dto.CreateStudentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	record, err := h.accounts.CreateStudent(c.Context(), actorFromContext(c), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrForbidden):
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		case errors.Is(err, service.ErrDuplicateIdentifier):
			return utils.SendError(c, fiber.StatusConflict, "student identifier already exists")
		case errors.Is(err, service.ErrEmptyIdentifier), isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to create student")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to create student")
		}
	}

	return utils.SendCreated(c, "student created", record)
}

func (h *StudentHandler) delete(c *fiber.Ctx) error {
	identifier := c.Params("id")

	if err := h.accounts.DeleteStudent(c.Context(), actorFromContext(c), identifier); err != nil {
		switch {
		case errors.Is(err, service.ErrForbidden):
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to delete student")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to delete student")
		}
	}

	return utils.SendSuccess(c, "student deleted", fiber.Map{"identifier": identifier})
}

func (h *StudentHandler) rename(c *fiber.Ctx) error {
	identifier := c.Params("id")

	var payload dto.RenameStudentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	if err := h.accounts.RenameStudent(c.Context(), actorFromContext(c), identifier, payload.NewIdentifier); err != nil {
		switch {
		case errors.Is(err, service.ErrForbidden):
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		case errors.Is(err, service.ErrDuplicateIdentifier):
			return utils.SendError(c, fiber.StatusConflict, "student identifier already exists")
		case errors.Is(err, service.ErrEmptyIdentifier):
			return utils.SendError(c, fiber.StatusBadRequest, "new identifier must not be empty")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to rename student")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to rename student")
		}
	}

	return utils.SendSuccess(c, "student renamed", fiber.Map{"identifier": payload.NewIdentifier})
}

func (h *StudentHandler) resetPassword(c *fiber.Ctx) error {
	identifier := c.Params("id")

	var payload dto.ResetPasswordRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	if err := h.accounts.ResetPassword(c.Context(), actorFromContext(c), identifier, payload.NewPassword); err != nil {
		switch {
		case errors.Is(err, service.ErrForbidden):
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		case errors.Is(err, service.ErrPasswordTooShort):
			return utils.SendError(c, fiber.StatusBadRequest, "password must be at least 6 characters")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to reset password")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to reset password")
		}
	}

	return utils.SendSuccess(c, "password reset", fiber.Map{"identifier": identifier})
}

func (h *StudentHandler) setRemarks(c *fiber.Ctx) error {
	identifier := c.Params("id")

	var payload dto.RemarksRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	if err := h.accounts.SetRemarks(c.Context(), actorFromContext(c), identifier, payload.Remarks); err != nil {
		switch {
		case errors.Is(err, service.ErrForbidden):
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to update remarks")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to update remarks")
		}
	}

	return utils.SendSuccess(c, "remarks updated", fiber.Map{"identifier": identifier})
}
