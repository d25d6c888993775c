package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phdtrack/phdtrack-api/internal/models"
)

func TestCompletionRatio(t *testing.T) {
	milestones := map[string]bool{
		"m1": true, "m2": true, "m3": true,
		"m4": false, "m5": false, "m6": false, "m7": false,
		"m8": false, "m9": false, "m10": false,
	}
	require.InDelta(t, 0.3, CompletionRatio(milestones), 1e-9)

	require.Zero(t, CompletionRatio(nil))
	require.Zero(t, CompletionRatio(map[string]bool{}))

	all := map[string]bool{"a": true, "b": true}
	require.InDelta(t, 1.0, CompletionRatio(all), 1e-9)
}

func TestDaysUntilDue(t *testing.T) {
	today := time.Date(2025, 8, 1, 15, 30, 0, 0, time.UTC)

	require.Equal(t, 10, DaysUntilDue(models.NewDate(2025, 8, 11), today))
	require.Equal(t, 0, DaysUntilDue(models.NewDate(2025, 8, 1), today))
	require.Equal(t, -5, DaysUntilDue(models.NewDate(2025, 7, 27), today))
}

func TestPeriodicSummary(t *testing.T) {
	entries := map[string]models.PeriodicEntry{
		"rpr1": {Date: models.NewDate(2025, 8, 1), Completed: true},
		"rpr2": {Date: models.NewDate(2026, 1, 28), Completed: false},
		"rpr3": {Date: models.NewDate(2026, 7, 27), Completed: true},
	}

	done, total := PeriodicSummary(entries)
	require.Equal(t, 2, done)
	require.Equal(t, 3, total)

	done, total = PeriodicSummary(nil)
	require.Zero(t, done)
	require.Zero(t, total)
}
