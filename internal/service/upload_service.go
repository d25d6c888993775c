package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/phdtrack/phdtrack-api/internal/dto"
	"github.com/phdtrack/phdtrack-api/internal/observability"
)

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadNotPDF indicates the sniffed content is not a PDF document.
	ErrUploadNotPDF = errors.New("only PDF documents are accepted")
)

// FileBackup mirrors a stored document into remote storage. Implementations
// are best-effort collaborators; failures are logged, never surfaced.
type FileBackup interface {
	Backup(ctx context.Context, studentID, name string, reader io.Reader) (string, error)
}

// UploadService stores student documents under a per-student directory.
type UploadService interface {
	Store(ctx context.Context, identifier string, file *multipart.FileHeader) (dto.UploadResponse, error)
	List(ctx context.Context, identifier string) ([]string, error)
}

type uploadService struct {
	progress ProgressService
	backup   FileBackup
	dir      string
	maxSize  int64
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewUploadService constructs an upload service. backup may be nil when no
// cloud collaborator is configured.
func NewUploadService(progress ProgressService, backup FileBackup, dir string, maxSizeMB int, logger zerolog.Logger) UploadService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &uploadService{
		progress: progress,
		backup:   backup,
		dir:      dir,
		maxSize:  int64(maxSizeMB) * 1024 * 1024,
		logger:   logger.With().Str("component", "upload_service").Logger(),
		tracer:   otel.Tracer("github.com/phdtrack/phdtrack-api/internal/service/upload"),
	}
}

func (s *uploadService) Store(ctx context.Context, identifier string, file *multipart.FileHeader) (dto.UploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "upload.store")
	defer span.End()

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	if file == nil {
		err := errors.New("file is required")
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.UploadResponse{}, err
	}

	span.SetAttributes(
		attribute.String("upload.student", identifier),
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	// The target student must exist before anything touches the disk.
	if _, err := s.progress.GetRecord(ctx, identifier); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown student")
		return dto.UploadResponse{}, err
	}

	if file.Size > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.SetStatus(codes.Error, "payload too large")
		return dto.UploadResponse{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return dto.UploadResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return dto.UploadResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.SetStatus(codes.Error, "payload too large")
		return dto.UploadResponse{}, ErrUploadTooLarge
	}

	mime := mimetype.Detect(buf.Bytes())
	span.SetAttributes(attribute.String("upload.detected_mime", mime.String()))
	if !mime.Is("application/pdf") {
		observability.UploadRejected().WithLabelValues("type").Inc()
		span.SetStatus(codes.Error, "type not allowed")
		return dto.UploadResponse{}, ErrUploadNotPDF
	}

	name := sanitizeFileName(file.Filename)
	studentDir := filepath.Join(s.dir, identifier)
	if err := os.MkdirAll(studentDir, 0o755); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mkdir failed")
		return dto.UploadResponse{}, fmt.Errorf("failed to create upload directory: %w", err)
	}

	// Name collisions overwrite the previous document silently.
	target := filepath.Join(studentDir, name)
	if err := os.WriteFile(target, buf.Bytes(), 0o644); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return dto.UploadResponse{}, fmt.Errorf("failed to store document: %w", err)
	}

	response := dto.UploadResponse{
		FileName:  name,
		SizeBytes: int64(buf.Len()),
		MimeType:  "application/pdf",
	}

	if s.backup != nil {
		url, err := s.backup.Backup(ctx, identifier, name, bytes.NewReader(buf.Bytes()))
		if err != nil {
			observability.BackupOutcomes().WithLabelValues("failure").Inc()
			s.logger.Warn().Err(err).Str("student", identifier).Str("file", name).Msg("cloud backup failed")
		} else {
			observability.BackupOutcomes().WithLabelValues("success").Inc()
			response.BackedUp = true
			response.BackupURL = url
		}
	}

	observability.UploadRequests().WithLabelValues(response.MimeType).Inc()
	span.SetStatus(codes.Ok, "stored")

	s.logger.Info().Str("student", identifier).Str("file", name).Int64("bytes", response.SizeBytes).Msg("document stored")

	return response, nil
}

func (s *uploadService) List(ctx context.Context, identifier string) ([]string, error) {
	if _, err := s.progress.GetRecord(ctx, identifier); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.dir, identifier))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	return names, nil
}

// sanitizeFileName keeps the base name deterministic so repeat uploads of the
// same document land on the same path.
func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = "document"
	}
	return base + ".pdf"
}
