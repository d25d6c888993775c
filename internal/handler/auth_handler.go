package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/phdtrack/phdtrack-api/internal/dto"
	"github.com/phdtrack/phdtrack-api/internal/middleware"
	"github.com/phdtrack/phdtrack-api/internal/service"
	"github.com/phdtrack/phdtrack-api/internal/utils"
)

// AuthHandler wires the login and password-change endpoints.
type AuthHandler struct {
	service  service.AuthService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(service service.AuthService, validate *validator.Validate, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		validate: validate,
		logger:   logger.With().Str("component", "auth_handler").Logger(),
	}
}

// RegisterPublic attaches the unauthenticated auth routes.
func (h *AuthHandler) RegisterPublic(router fiber.Router) {
	router.Post("/login", h.login)
}

// RegisterProtected attaches routes requiring an authenticated session.
func (h *AuthHandler) RegisterProtected(router fiber.Router) {
	router.Post("/change-password", h.changePassword)
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validate.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "identifier and password are required")
	}

	session, err := h.service.Authenticate(c.Context(), payload.Identifier, payload.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid credentials")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("login failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "login failed")
	}

	return utils.SendSuccess(c, "authenticated", session)
}

func (h *AuthHandler) changePassword(c *fiber.Ctx) error {
	var payload dto.ChangePasswordRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validate.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "new password is required")
	}

	identifier := userIDFromContext(c)
	forced, _ := c.Locals(middleware.LocalPasswordChangeDue).(bool)

	old := payload.OldPassword
	if forced {
		// No prior password to confirm in the forced first-change flow.
		old = ""
	}

	session, err := h.service.ChangePassword(c.Context(), identifier, old, payload.NewPassword, payload.Confirm)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWrongOldPassword):
			return utils.SendError(c, fiber.StatusBadRequest, "old password does not match")
		case errors.Is(err, service.ErrPasswordTooShort):
			return utils.SendError(c, fiber.StatusBadRequest, "password must be at least 6 characters")
		case errors.Is(err, service.ErrPasswordMismatch):
			return utils.SendError(c, fiber.StatusBadRequest, "password confirmation does not match")
		case errors.Is(err, service.ErrSupervisorPassword):
			return utils.SendError(c, fiber.StatusForbidden, "supervisor password is managed in configuration")
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("password change failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "password change failed")
		}
	}

	return utils.SendSuccess(c, "password changed", session)
}
