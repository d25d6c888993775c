package handler

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/phdtrack/phdtrack-api/internal/dto"
	"github.com/phdtrack/phdtrack-api/internal/models"
	"github.com/phdtrack/phdtrack-api/internal/service"
	"github.com/phdtrack/phdtrack-api/internal/utils"
)

// ProgressHandler wires the per-student progress and dashboard endpoints.
type ProgressHandler struct {
	progress  service.ProgressService
	dashboard service.DashboardService
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewProgressHandler constructs the handler.
func NewProgressHandler(progress service.ProgressService, dashboard service.DashboardService, validate *validator.Validate, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		progress:  progress,
		dashboard: dashboard,
		validate:  validate,
		logger:    logger.With().Str("component", "progress_handler").Logger(),
	}
}

// Register attaches the progress routes to an authenticated group.
func (h *ProgressHandler) Register(router fiber.Router) {
	router.Get("/:id/progress", h.getProgress)
	router.Get("/:id/dashboard", h.getDashboard)
	router.Put("/:id/milestones/:name", h.setMilestone)
	router.Put("/:id/periodic/:kind/:index", h.setPeriodicEntry)
}

func (h *ProgressHandler) getProgress(c *fiber.Ctx) error {
	identifier := c.Params("id")
	if !canAccessStudent(c, identifier) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	response, err := h.dashboard.GetProgress(c.Context(), identifier)
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to fetch progress")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch progress")
	}

	return utils.SendSuccess(c, "progress retrieved", response)
}

func (h *ProgressHandler) getDashboard(c *fiber.Ctx) error {
	identifier := c.Params("id")
	if !canAccessStudent(c, identifier) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	response, err := h.dashboard.GetDashboard(c.Context(), identifier)
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to build dashboard")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to build dashboard")
	}

	return utils.SendSuccess(c, "dashboard retrieved", response)
}

func (h *ProgressHandler) setMilestone(c *fiber.Ctx) error {
	identifier := c.Params("id")
	if !canAccessStudent(c, identifier) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	name, err := decodeParam(c, "name")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid milestone name")
	}

	var payload dto.MilestoneRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	if err := h.progress.SetMilestone(c.Context(), identifier, name, payload.Completed); err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to update milestone")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to update milestone")
	}

	return utils.SendSuccess(c, "milestone updated", fiber.Map{"name": name, "completed": payload.Completed})
}

func (h *ProgressHandler) setPeriodicEntry(c *fiber.Ctx) error {
	identifier := c.Params("id")
	if !canAccessStudent(c, identifier) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	kind := strings.ToLower(c.Params("kind"))
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid entry index")
	}

	var payload dto.PeriodicEntryRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validate.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "date is required")
	}

	due, err := models.ParseDate(payload.Date)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "date must be formatted YYYY-MM-DD")
	}

	if err := h.progress.SetPeriodicEntry(c.Context(), identifier, kind, index, due, payload.Completed); err != nil {
		switch {
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		case errors.Is(err, service.ErrUnknownKind):
			return utils.SendError(c, fiber.StatusBadRequest, "kind must be rpr or aps")
		case errors.Is(err, service.ErrIndexOutOfRange):
			return utils.SendError(c, fiber.StatusBadRequest, "entry index out of range")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to update periodic entry")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to update periodic entry")
		}
	}

	return utils.SendSuccess(c, "periodic entry updated", fiber.Map{
		"key":       models.PeriodicKey(kind, index),
		"completed": payload.Completed,
	})
}

// decodeParam unescapes a path parameter; milestone names contain spaces.
func decodeParam(c *fiber.Ctx, key string) (string, error) {
	raw := c.Params(key)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", err
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return "", errors.New("empty parameter")
	}
	return decoded, nil
}
