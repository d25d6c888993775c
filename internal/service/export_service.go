package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/phdtrack/phdtrack-api/internal/dto"
	"github.com/phdtrack/phdtrack-api/internal/models"
	"github.com/phdtrack/phdtrack-api/internal/observability"
)

// ExportService renders one student's progress into a spreadsheet: a sheet
// per record kind plus the milestone checklist.
type ExportService interface {
	ExportWorkbook(ctx context.Context, identifier string) (dto.ExportResult, error)
}

type exportService struct {
	progress ProgressService
	backup   FileBackup
	logger   zerolog.Logger
}

// NewExportService constructs the spreadsheet exporter. backup may be nil.
func NewExportService(progress ProgressService, backup FileBackup, logger zerolog.Logger) ExportService {
	return &exportService{
		progress: progress,
		backup:   backup,
		logger:   logger.With().Str("component", "export_service").Logger(),
	}
}

func (s *exportService) ExportWorkbook(ctx context.Context, identifier string) (dto.ExportResult, error) {
	record, err := s.progress.GetRecord(ctx, identifier)
	if err != nil {
		return dto.ExportResult{}, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Milestones"); err != nil {
		return dto.ExportResult{}, fmt.Errorf("failed to name milestones sheet: %w", err)
	}

	if err := writeMilestoneSheet(f, record); err != nil {
		return dto.ExportResult{}, err
	}
	if err := writePeriodicSheet(f, "RPR", models.KindRPR, record.RPR); err != nil {
		return dto.ExportResult{}, err
	}
	if err := writePeriodicSheet(f, "APS", models.KindAPS, record.APS); err != nil {
		return dto.ExportResult{}, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return dto.ExportResult{}, fmt.Errorf("failed to render workbook: %w", err)
	}

	result := dto.ExportResult{
		FileName: fmt.Sprintf("%s-progress.xlsx", identifier),
		Content:  buf.Bytes(),
	}

	if s.backup != nil {
		if _, err := s.backup.Backup(ctx, identifier, result.FileName, bytes.NewReader(result.Content)); err != nil {
			observability.BackupOutcomes().WithLabelValues("failure").Inc()
			s.logger.Warn().Err(err).Str("student", identifier).Msg("workbook backup failed")
		} else {
			observability.BackupOutcomes().WithLabelValues("success").Inc()
		}
	}

	return result, nil
}

func writeMilestoneSheet(f *excelize.File, record models.StudentRecord) error {
	headers := []interface{}{"Milestone", "Completed"}
	if err := f.SetSheetRow("Milestones", "A1", &headers); err != nil {
		return fmt.Errorf("failed to write milestone header: %w", err)
	}

	for i, status := range dto.OrderedMilestones(record.Milestones) {
		row := []interface{}{status.Name, status.Completed}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow("Milestones", cell, &row); err != nil {
			return fmt.Errorf("failed to write milestone row: %w", err)
		}
	}

	return nil
}

func writePeriodicSheet(f *excelize.File, sheet, kind string, entries map[string]models.PeriodicEntry) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create %s sheet: %w", sheet, err)
	}

	headers := []interface{}{"Entry", "Due Date", "Completed"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}

	row := 2
	for i := 1; i <= models.EntryCount(kind); i++ {
		key := models.PeriodicKey(kind, i)
		entry, ok := entries[key]
		if !ok {
			continue
		}
		values := []interface{}{key, entry.Date.String(), entry.Completed}
		cell := fmt.Sprintf("A%d", row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write %s row: %w", sheet, err)
		}
		row++
	}

	return nil
}
