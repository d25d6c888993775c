package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/phdtrack/phdtrack-api/internal/models"
	"github.com/phdtrack/phdtrack-api/internal/observability"
	"github.com/phdtrack/phdtrack-api/internal/store"
)

var (
	// ErrStudentNotFound indicates the identifier is absent from the dataset.
	ErrStudentNotFound = errors.New("student not found")
	// ErrDuplicateIdentifier indicates the identifier is already taken.
	ErrDuplicateIdentifier = errors.New("student identifier already exists")
	// ErrEmptyIdentifier indicates a blank identifier.
	ErrEmptyIdentifier = errors.New("student identifier must not be empty")
	// ErrIndexOutOfRange indicates a periodic entry index outside the fixed range.
	ErrIndexOutOfRange = errors.New("periodic entry index out of range")
	// ErrUnknownKind indicates a periodic record kind other than rpr or aps.
	ErrUnknownKind = errors.New("unknown periodic record kind")
)

// ProgressService owns the student record schema and its mutation rules.
// Every mutation performs a full load, mutate, save cycle; the save is the
// atomicity boundary, so a failed operation never partially applies.
type ProgressService interface {
	ListStudents(ctx context.Context) ([]string, error)
	GetRecord(ctx context.Context, identifier string) (models.StudentRecord, error)
	CreateStudent(ctx context.Context, identifier string, baseRPR, baseAPS models.Date, passwordHash string) (models.StudentRecord, error)
	RenameStudent(ctx context.Context, oldID, newID string) error
	SetMilestone(ctx context.Context, identifier, name string, completed bool) error
	SetRemarks(ctx context.Context, identifier, text string) error
	SetPeriodicEntry(ctx context.Context, identifier, kind string, index int, due models.Date, completed bool) error
	SetPassword(ctx context.Context, identifier, passwordHash string, forceChange bool) error
	DeleteStudent(ctx context.Context, identifier string) error
}

type progressService struct {
	store     store.Store
	uploadDir string
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewProgressService constructs the progress service. uploadDir may be empty
// when upload cleanup on delete is not wanted.
func NewProgressService(st store.Store, uploadDir string, logger zerolog.Logger) ProgressService {
	return &progressService{
		store:     st,
		uploadDir: uploadDir,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "progress_service").Logger(),
	}
}

func (s *progressService) ListStudents(ctx context.Context) ([]string, error) {
	dataset, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	identifiers := make([]string, 0, len(dataset))
	for id := range dataset {
		identifiers = append(identifiers, id)
	}
	sort.Strings(identifiers)

	return identifiers, nil
}

func (s *progressService) GetRecord(ctx context.Context, identifier string) (models.StudentRecord, error) {
	dataset, err := s.store.Load(ctx)
	if err != nil {
		return models.StudentRecord{}, err
	}

	record, ok := dataset[strings.TrimSpace(identifier)]
	if !ok {
		return models.StudentRecord{}, ErrStudentNotFound
	}

	return record, nil
}

func (s *progressService) CreateStudent(ctx context.Context, identifier string, baseRPR, baseAPS models.Date, passwordHash string) (models.StudentRecord, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return models.StudentRecord{}, ErrEmptyIdentifier
	}

	dataset, err := s.store.Load(ctx)
	if err != nil {
		return models.StudentRecord{}, err
	}

	if _, exists := dataset[identifier]; exists {
		return models.StudentRecord{}, ErrDuplicateIdentifier
	}

	record := models.NewStudentRecord(baseRPR, baseAPS)
	record.Password = passwordHash
	record.ForcePasswordChange = true
	dataset[identifier] = record

	if err := s.save(ctx, dataset); err != nil {
		return models.StudentRecord{}, err
	}

	s.logger.Info().Str("identifier", identifier).Msg("student created")

	return record, nil
}

func (s *progressService) RenameStudent(ctx context.Context, oldID, newID string) error {
	oldID = strings.TrimSpace(oldID)
	newID = strings.TrimSpace(newID)

	if newID == "" {
		return ErrEmptyIdentifier
	}
	if newID == oldID {
		return nil
	}

	dataset, err := s.store.Load(ctx)
	if err != nil {
		return err
	}

	record, ok := dataset[oldID]
	if !ok {
		return ErrStudentNotFound
	}
	if _, exists := dataset[newID]; exists {
		return ErrDuplicateIdentifier
	}

	// Pop-then-insert on the in-memory dataset; the single save keeps the
	// rename all-or-nothing on disk.
	delete(dataset, oldID)
	dataset[newID] = record

	if err := s.save(ctx, dataset); err != nil {
		return err
	}

	s.renameUploadDir(oldID, newID)
	s.logger.Info().Str("from", oldID).Str("to", newID).Msg("student renamed")

	return nil
}

func (s *progressService) SetMilestone(ctx context.Context, identifier, name string, completed bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("milestone name must not be empty")
	}

	return s.mutate(ctx, identifier, func(record *models.StudentRecord) error {
		if record.Milestones == nil {
			record.Milestones = make(map[string]bool)
		}
		// Unknown milestone names are accepted and added; custom checkpoints
		// beyond the canonical list are allowed.
		record.Milestones[name] = completed
		return nil
	})
}

func (s *progressService) SetRemarks(ctx context.Context, identifier, text string) error {
	sanitized := s.sanitizer.Sanitize(text)

	return s.mutate(ctx, identifier, func(record *models.StudentRecord) error {
		record.Remarks = sanitized
		return nil
	})
}

func (s *progressService) SetPeriodicEntry(ctx context.Context, identifier, kind string, index int, due models.Date, completed bool) error {
	kind = strings.ToLower(strings.TrimSpace(kind))
	count := models.EntryCount(kind)
	if count == 0 {
		return ErrUnknownKind
	}
	if index < 1 || index > count {
		return ErrIndexOutOfRange
	}

	key := models.PeriodicKey(kind, index)
	entry := models.PeriodicEntry{Date: due, Completed: completed}

	return s.mutate(ctx, identifier, func(record *models.StudentRecord) error {
		switch kind {
		case models.KindRPR:
			if record.RPR == nil {
				record.RPR = make(map[string]models.PeriodicEntry, models.RPRCount)
			}
			record.RPR[key] = entry
		case models.KindAPS:
			if record.APS == nil {
				record.APS = make(map[string]models.PeriodicEntry, models.APSCount)
			}
			record.APS[key] = entry
		}
		return nil
	})
}

func (s *progressService) SetPassword(ctx context.Context, identifier, passwordHash string, forceChange bool) error {
	return s.mutate(ctx, identifier, func(record *models.StudentRecord) error {
		record.Password = passwordHash
		record.ForcePasswordChange = forceChange
		return nil
	})
}

func (s *progressService) DeleteStudent(ctx context.Context, identifier string) error {
	identifier = strings.TrimSpace(identifier)

	dataset, err := s.store.Load(ctx)
	if err != nil {
		return err
	}

	if _, ok := dataset[identifier]; !ok {
		return ErrStudentNotFound
	}
	delete(dataset, identifier)

	if err := s.save(ctx, dataset); err != nil {
		return err
	}

	s.removeUploadDir(identifier)
	s.logger.Info().Str("identifier", identifier).Msg("student deleted")

	return nil
}

func (s *progressService) mutate(ctx context.Context, identifier string, apply func(*models.StudentRecord) error) error {
	identifier = strings.TrimSpace(identifier)

	dataset, err := s.store.Load(ctx)
	if err != nil {
		return err
	}

	record, ok := dataset[identifier]
	if !ok {
		return ErrStudentNotFound
	}

	if err := apply(&record); err != nil {
		return err
	}
	dataset[identifier] = record

	return s.save(ctx, dataset)
}

func (s *progressService) save(ctx context.Context, dataset models.Dataset) error {
	if err := s.store.Save(ctx, dataset); err != nil {
		observability.DatasetSaves().WithLabelValues("failure").Inc()
		return err
	}
	observability.DatasetSaves().WithLabelValues("success").Inc()
	return nil
}

// Upload directory maintenance is best-effort; the dataset save has already
// succeeded by the time these run.
func (s *progressService) removeUploadDir(identifier string) {
	if s.uploadDir == "" {
		return
	}
	dir := filepath.Join(s.uploadDir, identifier)
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warn().Err(err).Str("dir", dir).Msg("failed to remove upload directory")
	}
}

func (s *progressService) renameUploadDir(oldID, newID string) {
	if s.uploadDir == "" {
		return
	}
	oldDir := filepath.Join(s.uploadDir, oldID)
	if _, err := os.Stat(oldDir); err != nil {
		return
	}
	newDir := filepath.Join(s.uploadDir, newID)
	if err := os.Rename(oldDir, newDir); err != nil {
		s.logger.Warn().Err(err).Str("from", oldDir).Str("to", newDir).Msg("failed to move upload directory")
	}
}
