package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/phdtrack/phdtrack-api/internal/utils"
)

// Locals keys populated by JWTProtected.
const (
	LocalUserID            = "user_id"
	LocalUserRole          = "user_role"
	LocalPasswordChangeDue = "pwd_change"
)

// JWTProtected returns a middleware that validates JWT bearer tokens and
// exposes the session identity through request locals.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		subject, ok := claims["sub"].(string)
		if !ok || strings.TrimSpace(subject) == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token subject")
		}
		c.Locals(LocalUserID, subject)

		if role, ok := claims["role"].(string); ok {
			c.Locals(LocalUserRole, strings.ToLower(strings.TrimSpace(role)))
		}
		if due, ok := claims["pwd_change"].(bool); ok && due {
			c.Locals(LocalPasswordChangeDue, true)
		}

		return c.Next()
	}
}
