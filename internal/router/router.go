package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/phdtrack/phdtrack-api/internal/config"
	"github.com/phdtrack/phdtrack-api/internal/handler"
	"github.com/phdtrack/phdtrack-api/internal/middleware"
	"github.com/phdtrack/phdtrack-api/internal/observability"
	"github.com/phdtrack/phdtrack-api/internal/service"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler     *handler.AuthHandler
	StudentHandler  *handler.StudentHandler
	ProgressHandler *handler.ProgressHandler
	UploadHandler   *handler.UploadHandler
	ExportHandler   *handler.ExportHandler
	JWTMiddleware   fiber.Handler
	LoginRateLimit  fiber.Handler
}

const changePasswordPath = "/api/v1/auth/change-password"

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Authentication
	if deps.AuthHandler != nil {
		auth := api.Group("/auth")
		if deps.LoginRateLimit != nil {
			auth.Use(deps.LoginRateLimit)
		}
		deps.AuthHandler.RegisterPublic(auth)

		// Password change stays reachable while a forced change is pending.
		protected := api.Group("/auth", jwtMiddleware)
		deps.AuthHandler.RegisterProtected(protected)
	}

	// Everything below requires a session and a settled password.
	students := api.Group("/students", jwtMiddleware, middleware.PasswordChangeGate(changePasswordPath))

	if deps.ProgressHandler != nil {
		deps.ProgressHandler.Register(students)
	}
	if deps.UploadHandler != nil {
		deps.UploadHandler.Register(students)
	}
	if deps.ExportHandler != nil {
		deps.ExportHandler.Register(students)
	}

	// Account management is supervisor only.
	if deps.StudentHandler != nil {
		admin := api.Group("/students", jwtMiddleware, middleware.PasswordChangeGate(changePasswordPath), middleware.RequireRole(service.RoleSupervisor))
		deps.StudentHandler.Register(admin)
	}
}
