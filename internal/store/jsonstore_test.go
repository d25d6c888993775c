package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/phdtrack/phdtrack-api/internal/models"
)

func newTestStore(t *testing.T) (*JSONStore, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "student_data.json")
	s, err := NewJSONStore(path, zerolog.Nop())
	require.NoError(t, err)
	return s, path
}

func TestLoadMissingFileReturnsEmptyDataset(t *testing.T) {
	s, _ := newTestStore(t)

	dataset, err := s.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, dataset)
	require.Empty(t, dataset)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)

	record := models.NewStudentRecord(models.NewDate(2025, 8, 1), models.NewDate(2026, 1, 1))
	record.Password = "hashed-secret"
	record.Remarks = "good progress"
	record.Milestones["Topic Finalized"] = true

	dataset := models.Dataset{"jdoe": record}
	require.NoError(t, s.Save(context.Background(), dataset))

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, dataset, loaded)

	rpr := loaded["jdoe"].RPR
	require.Len(t, rpr, models.RPRCount)
	for i := 1; i <= models.RPRCount; i++ {
		require.Contains(t, rpr, models.PeriodicKey(models.KindRPR, i))
	}
	require.Len(t, loaded["jdoe"].APS, models.APSCount)
}

func TestLoadCorruptFileFailsLoudly(t *testing.T) {
	s, path := newTestStore(t)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := s.Load(context.Background())
	require.ErrorIs(t, err, ErrCorruptDataset)
}

func TestLoadSchemaViolationFailsLoudly(t *testing.T) {
	s, path := newTestStore(t)

	// rpr entry missing the required completed flag.
	bad := `{"jdoe": {"rpr": {"rpr1": {"date": "2025-08-01"}}}}`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	_, err := s.Load(context.Background())
	require.ErrorIs(t, err, ErrCorruptDataset)
}

func TestSavePreservesUnknownRecordFields(t *testing.T) {
	s, path := newTestStore(t)

	original := `{
		"jdoe": {
			"milestones": {"Topic Finalized": false},
			"remarks": "",
			"rpr": {"rpr1": {"date": "2025-08-01", "completed": false}},
			"aps": {"aps1": {"date": "2026-01-01", "completed": false}},
			"uploads": ["proposal.pdf"]
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	dataset, err := s.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), dataset))

	reloaded, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Contains(t, reloaded["jdoe"].Extra, "uploads")
	require.JSONEq(t, `["proposal.pdf"]`, string(reloaded["jdoe"].Extra["uploads"]))
}

func TestMinimalRecordSurvivesLoadSaveCycle(t *testing.T) {
	s, path := newTestStore(t)

	// Hand-edited records may omit the milestone and periodic maps entirely.
	require.NoError(t, os.WriteFile(path, []byte(`{"jdoe": {"password": "x"}}`), 0o644))

	dataset, err := s.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), dataset))

	// The rewritten file must still be loadable; absent maps must not have
	// been written back as nulls.
	reloaded, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "x", reloaded["jdoe"].Password)
	require.Nil(t, reloaded["jdoe"].Milestones)
	require.Nil(t, reloaded["jdoe"].RPR)
	require.Nil(t, reloaded["jdoe"].APS)
}

func TestSaveLeavesNoTempFilesBehind(t *testing.T) {
	s, path := newTestStore(t)

	require.NoError(t, s.Save(context.Background(), models.Dataset{}))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, filepath.Base(path), entries[0].Name())
}
