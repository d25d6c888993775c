package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/phdtrack/phdtrack-api/internal/config"
	"github.com/phdtrack/phdtrack-api/internal/dto"
	"github.com/phdtrack/phdtrack-api/internal/handler"
	"github.com/phdtrack/phdtrack-api/internal/middleware"
	"github.com/phdtrack/phdtrack-api/internal/router"
	"github.com/phdtrack/phdtrack-api/internal/service"
	"github.com/phdtrack/phdtrack-api/internal/store"
)

const jwtSecret = "integration-secret"

func newAPI(t *testing.T) *fiber.App {
	t.Helper()

	logger := zerolog.Nop()
	dir := t.TempDir()

	st, err := store.NewJSONStore(filepath.Join(dir, "dataset.json"), logger)
	require.NoError(t, err)

	validate := validator.New(validator.WithRequiredStructEnabled())
	uploadDir := filepath.Join(dir, "uploads")

	progress := service.NewProgressService(st, uploadDir, logger)
	auth := service.NewAuthService(st, "prof", "super-secret", jwtSecret, time.Hour, logger)
	accounts := service.NewAccountService(progress, validate, logger)
	dashboard := service.NewDashboardService(progress, nil, time.Minute, logger)
	uploads := service.NewUploadService(progress, nil, uploadDir, 5, logger)
	export := service.NewExportService(progress, nil, logger)

	cfg := config.Config{AppName: "phdtrack-test"}

	app := fiber.New()
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:     handler.NewAuthHandler(auth, validate, logger),
		StudentHandler:  handler.NewStudentHandler(accounts, progress, logger),
		ProgressHandler: handler.NewProgressHandler(progress, dashboard, validate, logger),
		UploadHandler:   handler.NewUploadHandler(uploads, logger),
		ExportHandler:   handler.NewExportHandler(export, logger),
		JWTMiddleware:   middleware.JWTProtected(jwtSecret),
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func login(t *testing.T, app *fiber.App, identifier, password string) dto.LoginResponse {
	t.Helper()

	resp := doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{
		Identifier: identifier,
		Password:   password,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope struct {
		Data dto.LoginResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	resp.Body.Close()
	return envelope.Data
}

func TestHealthEndpoint(t *testing.T) {
	app := newAPI(t)

	resp := doJSON(t, app, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	app := newAPI(t)

	resp := doJSON(t, app, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRoutesRequireAuthentication(t *testing.T) {
	app := newAPI(t)

	resp := doJSON(t, app, http.MethodGet, "/api/v1/students/alice/progress", "", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/students/alice/progress", "not-a-token", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestForcedPasswordChangeFlow(t *testing.T) {
	app := newAPI(t)

	supervisor := login(t, app, "prof", "super-secret")
	require.Equal(t, service.RoleSupervisor, supervisor.Role)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/students", supervisor.Token, dto.CreateStudentRequest{
		Identifier:      "alice",
		BaseRPRDate:     "2025-08-01",
		BaseAPSDate:     "2026-01-01",
		InitialPassword: "welcome1",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// First login runs in the forced change state.
	session := login(t, app, "alice", "welcome1")
	require.True(t, session.PasswordChangeRequired)

	// Every dashboard route is gated until the password changes.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/students/alice/progress", session.Token, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/students/alice/export", session.Token, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// The change-password endpoint itself stays reachable and hands back a
	// refreshed session.
	resp = doJSON(t, app, http.MethodPost, "/api/v1/auth/change-password", session.Token, dto.ChangePasswordRequest{
		NewPassword: "settled1",
		Confirm:     "settled1",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope struct {
		Data dto.LoginResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	resp.Body.Close()
	require.NotEmpty(t, envelope.Data.Token)
	require.False(t, envelope.Data.PasswordChangeRequired)

	// The refreshed token passes the gate without logging in again.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/students/alice/progress", envelope.Data.Token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// So does a fresh login.
	session = login(t, app, "alice", "settled1")
	require.False(t, session.PasswordChangeRequired)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/students/alice/progress", session.Token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestStudentCannotReachSupervisorRoutes(t *testing.T) {
	app := newAPI(t)

	supervisor := login(t, app, "prof", "super-secret")
	resp := doJSON(t, app, http.MethodPost, "/api/v1/students", supervisor.Token, dto.CreateStudentRequest{
		Identifier:      "alice",
		BaseRPRDate:     "2025-08-01",
		BaseAPSDate:     "2026-01-01",
		InitialPassword: "welcome1",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/v1/auth/change-password", login(t, app, "alice", "welcome1").Token, dto.ChangePasswordRequest{
		NewPassword: "settled1",
		Confirm:     "settled1",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	session := login(t, app, "alice", "settled1")

	resp = doJSON(t, app, http.MethodPost, "/api/v1/students", session.Token, dto.CreateStudentRequest{
		Identifier:      "eve",
		BaseRPRDate:     "2025-08-01",
		BaseAPSDate:     "2026-01-01",
		InitialPassword: "welcome1",
	})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, http.MethodDelete, "/api/v1/students/alice", session.Token, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestInvalidLoginRejected(t *testing.T) {
	app := newAPI(t)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{
		Identifier: "prof",
		Password:   "wrong",
	})
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
