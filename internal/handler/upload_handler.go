package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/phdtrack/phdtrack-api/internal/service"
	"github.com/phdtrack/phdtrack-api/internal/utils"
)

// UploadHandler handles per-student document uploads.
type UploadHandler struct {
	service service.UploadService
	logger  zerolog.Logger
}

// NewUploadHandler constructs an upload handler.
func NewUploadHandler(service service.UploadService, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		service: service,
		logger:  logger.With().Str("component", "upload_handler").Logger(),
	}
}

// Register wires upload routes.
func (h *UploadHandler) Register(router fiber.Router) {
	router.Post("/:id/uploads", h.upload)
	router.Get("/:id/uploads", h.list)
}

func (h *UploadHandler) upload(c *fiber.Ctx) error {
	identifier := c.Params("id")
	if !canAccessStudent(c, identifier) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	result, err := h.service.Store(c.Context(), identifier, file)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		case errors.Is(err, service.ErrUploadTooLarge):
			return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, service.ErrUploadNotPDF):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("upload failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "upload failed")
		}
	}

	return utils.SendSuccess(c, "upload successful", result)
}

func (h *UploadHandler) list(c *fiber.Ctx) error {
	identifier := c.Params("id")
	if !canAccessStudent(c, identifier) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	names, err := h.service.List(c.Context(), identifier)
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list uploads")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list uploads")
	}

	return utils.SendSuccess(c, "uploads retrieved", fiber.Map{"files": names})
}
