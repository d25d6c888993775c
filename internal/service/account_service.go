package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/phdtrack/phdtrack-api/internal/dto"
	"github.com/phdtrack/phdtrack-api/internal/models"
)

// ErrForbidden indicates the caller lacks the supervisor role.
var ErrForbidden = errors.New("operation requires supervisor role")

// Actor identifies the caller of an account operation. It is passed
// explicitly into every call; there is no ambient session state.
type Actor struct {
	Identifier string
	Role       string
}

// IsSupervisor reports whether the actor holds the supervisor role.
func (a Actor) IsSupervisor() bool {
	return a.Role == RoleSupervisor
}

// AccountService is the supervisor-only facade over student account
// management: enrolment, password resets, renames and removal.
type AccountService interface {
	CreateStudent(ctx context.Context, actor Actor, req dto.CreateStudentRequest) (dto.StudentProgressResponse, error)
	ResetPassword(ctx context.Context, actor Actor, identifier, newPassword string) error
	RenameStudent(ctx context.Context, actor Actor, oldID, newID string) error
	SetRemarks(ctx context.Context, actor Actor, identifier, remarks string) error
	DeleteStudent(ctx context.Context, actor Actor, identifier string) error
}

type accountService struct {
	progress  ProgressService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAccountService constructs the account management facade.
func NewAccountService(progress ProgressService, validate *validator.Validate, logger zerolog.Logger) AccountService {
	return &accountService{
		progress:  progress,
		validator: validate,
		logger:    logger.With().Str("component", "account_service").Logger(),
	}
}

func (s *accountService) CreateStudent(ctx context.Context, actor Actor, req dto.CreateStudentRequest) (dto.StudentProgressResponse, error) {
	if !actor.IsSupervisor() {
		return dto.StudentProgressResponse{}, ErrForbidden
	}

	if err := s.validator.Struct(req); err != nil {
		return dto.StudentProgressResponse{}, err
	}

	baseRPR, err := models.ParseDate(req.BaseRPRDate)
	if err != nil {
		return dto.StudentProgressResponse{}, err
	}
	baseAPS, err := models.ParseDate(req.BaseAPSDate)
	if err != nil {
		return dto.StudentProgressResponse{}, err
	}

	hash, err := hashPassword(req.InitialPassword)
	if err != nil {
		return dto.StudentProgressResponse{}, err
	}

	record, err := s.progress.CreateStudent(ctx, req.Identifier, baseRPR, baseAPS, hash)
	if err != nil {
		return dto.StudentProgressResponse{}, err
	}

	s.logger.Info().Str("supervisor", actor.Identifier).Str("student", req.Identifier).Msg("student enrolled")

	return buildProgressResponse(req.Identifier, record, time.Now()), nil
}

func (s *accountService) ResetPassword(ctx context.Context, actor Actor, identifier, newPassword string) error {
	if !actor.IsSupervisor() {
		return ErrForbidden
	}

	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	// A reset re-enters the forced first-change flow.
	if err := s.progress.SetPassword(ctx, identifier, hash, true); err != nil {
		return err
	}

	s.logger.Info().Str("supervisor", actor.Identifier).Str("student", identifier).Msg("password reset")

	return nil
}

func (s *accountService) RenameStudent(ctx context.Context, actor Actor, oldID, newID string) error {
	if !actor.IsSupervisor() {
		return ErrForbidden
	}
	return s.progress.RenameStudent(ctx, oldID, newID)
}

func (s *accountService) SetRemarks(ctx context.Context, actor Actor, identifier, remarks string) error {
	if !actor.IsSupervisor() {
		return ErrForbidden
	}
	return s.progress.SetRemarks(ctx, identifier, remarks)
}

func (s *accountService) DeleteStudent(ctx context.Context, actor Actor, identifier string) error {
	if !actor.IsSupervisor() {
		return ErrForbidden
	}
	return s.progress.DeleteStudent(ctx, identifier)
}
