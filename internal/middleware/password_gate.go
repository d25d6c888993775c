package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/phdtrack/phdtrack-api/internal/utils"
)

// PasswordChangeGate blocks every dashboard operation while the session is in
// the forced password-change state. Only the change-password endpoint itself
// is exempted, via the allow list of route paths.
func PasswordChangeGate(allowedPaths ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(allowedPaths))
	for _, path := range allowedPaths {
		allowed[path] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		due, _ := c.Locals(LocalPasswordChangeDue).(bool)
		if !due {
			return c.Next()
		}

		if _, ok := allowed[c.Path()]; ok {
			return c.Next()
		}

		return utils.SendError(c, fiber.StatusForbidden, "password change required before continuing")
	}
}
