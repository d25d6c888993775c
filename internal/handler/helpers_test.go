package handler_test

import (
	"bytes"
	"context"
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

	"github.com/phdtrack/phdtrack-api/internal/dto"
	"github.com/phdtrack/phdtrack-api/internal/middleware"
	"github.com/phdtrack/phdtrack-api/internal/service"
	"github.com/phdtrack/phdtrack-api/internal/store"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testEnv struct {
	progress  service.ProgressService
	dashboard service.DashboardService
	accounts  service.AccountService
	auth      service.AuthService
	validate  *validator.Validate
	uploads   service.UploadService
	export    service.ExportService
	uploadDir string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	logger := zerolog.Nop()
	dir := t.TempDir()

	st, err := store.NewJSONStore(filepath.Join(dir, "dataset.json"), logger)
	require.NoError(t, err)

	uploadDir := filepath.Join(dir, "uploads")
	validate := validator.New(validator.WithRequiredStructEnabled())

	progress := service.NewProgressService(st, uploadDir, logger)

	return testEnv{
		progress:  progress,
		dashboard: service.NewDashboardService(progress, nil, time.Minute, logger),
		accounts:  service.NewAccountService(progress, validate, logger),
		auth:      service.NewAuthService(st, "prof", "super-secret", "test-secret", time.Hour, logger),
		validate:  validate,
		uploads:   service.NewUploadService(progress, nil, uploadDir, 5, logger),
		export:    service.NewExportService(progress, nil, logger),
		uploadDir: uploadDir,
	}
}

// asUser injects the locals normally set by the JWT middleware.
func asUser(identifier, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalUserID, identifier)
		c.Locals(middleware.LocalUserRole, role)
		return c.Next()
	}
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
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
	return req
}

func decodeEnvelope(t *testing.T, resp *http.Response) apiEnvelope {
	t.Helper()

	var envelope apiEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	resp.Body.Close()
	return envelope
}

func enrollStudent(t *testing.T, env testEnv, identifier string) {
	t.Helper()

	_, err := env.accounts.CreateStudent(
		context.Background(),
		service.Actor{Identifier: "prof", Role: service.RoleSupervisor},
		dto.CreateStudentRequest{
			Identifier:      identifier,
			BaseRPRDate:     "2025-08-01",
			BaseAPSDate:     "2026-01-01",
			InitialPassword: "welcome1",
		},
	)
	require.NoError(t, err)
}
