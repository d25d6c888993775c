package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/phdtrack/phdtrack-api/internal/models"
)

func TestExportWorkbook(t *testing.T) {
	record := models.NewStudentRecord(models.NewDate(2025, time.August, 1), models.NewDate(2026, time.January, 1))
	record.Milestones["Topic Finalized"] = true
	record.RPR["rpr1"] = models.PeriodicEntry{Date: models.NewDate(2025, time.August, 1), Completed: true}

	st := &memStore{data: models.Dataset{"alice": record}}
	progress := NewProgressService(st, "", testLogger())
	backup := &backupStub{}
	svc := NewExportService(progress, backup, testLogger())

	result, err := svc.ExportWorkbook(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, "alice-progress.xlsx", result.FileName)
	require.NotEmpty(t, result.Content)
	require.Equal(t, "alice-progress.xlsx", backup.name)

	f, err := excelize.OpenReader(bytes.NewReader(result.Content))
	require.NoError(t, err)
	defer f.Close()

	require.ElementsMatch(t, []string{"Milestones", "RPR", "APS"}, f.GetSheetList())

	header, err := f.GetCellValue("Milestones", "A1")
	require.NoError(t, err)
	require.Equal(t, "Milestone", header)

	firstMilestone, err := f.GetCellValue("Milestones", "A2")
	require.NoError(t, err)
	require.Equal(t, "Topic Finalized", firstMilestone)

	firstDone, err := f.GetCellValue("Milestones", "B2")
	require.NoError(t, err)
	require.Equal(t, "TRUE", firstDone)

	rprKey, err := f.GetCellValue("RPR", "A2")
	require.NoError(t, err)
	require.Equal(t, "rpr1", rprKey)

	rprDate, err := f.GetCellValue("RPR", "B2")
	require.NoError(t, err)
	require.Equal(t, "2025-08-01", rprDate)

	apsKey, err := f.GetCellValue("APS", "A2")
	require.NoError(t, err)
	require.Equal(t, "aps1", apsKey)
}

func TestExportWorkbookUnknownStudent(t *testing.T) {
	st := &memStore{}
	progress := NewProgressService(st, "", testLogger())
	svc := NewExportService(progress, nil, testLogger())

	_, err := svc.ExportWorkbook(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrStudentNotFound)
}
