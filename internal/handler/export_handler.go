package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/phdtrack/phdtrack-api/internal/service"
	"github.com/phdtrack/phdtrack-api/internal/utils"
)

// ExportHandler serves spreadsheet exports of a student's progress.
type ExportHandler struct {
	service service.ExportService
	logger  zerolog.Logger
}

// NewExportHandler constructs the handler.
func NewExportHandler(service service.ExportService, logger zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		service: service,
		logger:  logger.With().Str("component", "export_handler").Logger(),
	}
}

// Register wires the export route.
func (h *ExportHandler) Register(router fiber.Router) {
	router.Get("/:id/export", h.export)
}

func (h *ExportHandler) export(c *fiber.Ctx) error {
	identifier := c.Params("id")
	if !canAccessStudent(c, identifier) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	result, err := h.service.ExportWorkbook(c.Context(), identifier)
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("export failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "export failed")
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", result.FileName))

	return c.Send(result.Content)
}
