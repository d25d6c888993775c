package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/phdtrack/phdtrack-api/internal/dto"
	"github.com/phdtrack/phdtrack-api/internal/observability"
	"github.com/phdtrack/phdtrack-api/internal/store"
)

// Roles assigned by authentication.
const (
	RoleSupervisor = "supervisor"
	RoleStudent    = "student"
)

var (
	// ErrInvalidCredentials is returned for any failed login. Unknown user and
	// wrong password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrWrongOldPassword indicates the current password did not match.
	ErrWrongOldPassword = errors.New("old password does not match")
	// ErrPasswordTooShort indicates the candidate password is under 6 characters.
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	// ErrPasswordMismatch indicates the confirmation value differed.
	ErrPasswordMismatch = errors.New("password confirmation does not match")
	// ErrSupervisorPassword indicates an attempt to change the supervisor
	// credential through the dataset; it lives in configuration only.
	ErrSupervisorPassword = errors.New("supervisor password is managed in configuration")
)

const minPasswordLength = 6

// AuthService verifies credentials and manages password changes.
type AuthService interface {
	Authenticate(ctx context.Context, identifier, password string) (dto.LoginResponse, error)
	RequiresPasswordChange(ctx context.Context, identifier string) (bool, error)
	ChangePassword(ctx context.Context, identifier, oldPassword, newPassword, confirm string) (dto.LoginResponse, error)
}

type authService struct {
	store              store.Store
	supervisorID       string
	supervisorPassword string
	jwtSecret          string
	tokenTTL           time.Duration
	logger             zerolog.Logger
	now                func() time.Time
}

// NewAuthService constructs the authentication service. The supervisor pair
// comes from configuration, never from the dataset.
func NewAuthService(st store.Store, supervisorID, supervisorPassword, jwtSecret string, tokenTTL time.Duration, logger zerolog.Logger) AuthService {
	return &authService{
		store:              st,
		supervisorID:       supervisorID,
		supervisorPassword: supervisorPassword,
		jwtSecret:          jwtSecret,
		tokenTTL:           tokenTTL,
		logger:             logger.With().Str("component", "auth_service").Logger(),
		now:                time.Now,
	}
}

func (s *authService) Authenticate(ctx context.Context, identifier, password string) (dto.LoginResponse, error) {
	identifier = strings.TrimSpace(identifier)

	if s.isSupervisor(identifier, password) {
		token, err := s.issueToken(identifier, RoleSupervisor, false)
		if err != nil {
			return dto.LoginResponse{}, err
		}
		return dto.LoginResponse{Token: token, Identifier: identifier, Role: RoleSupervisor}, nil
	}

	dataset, err := s.store.Load(ctx)
	if err != nil {
		return dto.LoginResponse{}, err
	}

	record, ok := dataset[identifier]
	if !ok || !verifyPassword(record.Password, password) {
		observability.AuthFailures().WithLabelValues("invalid_credentials").Inc()
		s.logger.Warn().Str("identifier", identifier).Msg("authentication failed")
		return dto.LoginResponse{}, ErrInvalidCredentials
	}

	token, err := s.issueToken(identifier, RoleStudent, record.ForcePasswordChange)
	if err != nil {
		return dto.LoginResponse{}, err
	}

	return dto.LoginResponse{
		Token:                  token,
		Identifier:             identifier,
		Role:                   RoleStudent,
		PasswordChangeRequired: record.ForcePasswordChange,
	}, nil
}

func (s *authService) RequiresPasswordChange(ctx context.Context, identifier string) (bool, error) {
	dataset, err := s.store.Load(ctx)
	if err != nil {
		return false, err
	}

	record, ok := dataset[strings.TrimSpace(identifier)]
	if !ok {
		return false, ErrStudentNotFound
	}

	return record.ForcePasswordChange, nil
}

func (s *authService) ChangePassword(ctx context.Context, identifier, oldPassword, newPassword, confirm string) (dto.LoginResponse, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == s.supervisorID {
		return dto.LoginResponse{}, ErrSupervisorPassword
	}

	dataset, err := s.store.Load(ctx)
	if err != nil {
		return dto.LoginResponse{}, err
	}

	record, ok := dataset[identifier]
	if !ok {
		return dto.LoginResponse{}, ErrStudentNotFound
	}

	// The forced first-change flow has no prior password to confirm.
	if !record.ForcePasswordChange && !verifyPassword(record.Password, oldPassword) {
		return dto.LoginResponse{}, ErrWrongOldPassword
	}

	if len(newPassword) < minPasswordLength {
		return dto.LoginResponse{}, ErrPasswordTooShort
	}

	if confirm != "" && confirm != newPassword {
		return dto.LoginResponse{}, ErrPasswordMismatch
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return dto.LoginResponse{}, err
	}

	record.Password = hash
	record.ForcePasswordChange = false
	dataset[identifier] = record

	if err := s.store.Save(ctx, dataset); err != nil {
		observability.DatasetSaves().WithLabelValues("failure").Inc()
		return dto.LoginResponse{}, err
	}
	observability.DatasetSaves().WithLabelValues("success").Inc()

	s.logger.Info().Str("identifier", identifier).Msg("password changed")

	// Refresh the session so the caller is not stuck behind the gate until
	// the old token expires.
	token, err := s.issueToken(identifier, RoleStudent, false)
	if err != nil {
		return dto.LoginResponse{}, err
	}

	return dto.LoginResponse{
		Token:      token,
		Identifier: identifier,
		Role:       RoleStudent,
	}, nil
}

func (s *authService) isSupervisor(identifier, password string) bool {
	idMatch := subtle.ConstantTimeCompare([]byte(identifier), []byte(s.supervisorID)) == 1
	pwMatch := subtle.ConstantTimeCompare([]byte(password), []byte(s.supervisorPassword)) == 1
	return idMatch && pwMatch
}

func (s *authService) issueToken(identifier, role string, passwordChangeDue bool) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":        identifier,
		"role":       role,
		"pwd_change": passwordChangeDue,
		"iat":        now.Unix(),
		"exp":        now.Add(s.tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// verifyPassword accepts bcrypt hashes for records written by this service
// and falls back to an exact comparison for legacy plaintext records.
func verifyPassword(stored, candidate string) bool {
	if stored == "" {
		return false
	}

	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
