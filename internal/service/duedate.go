package service

import (
	"time"

	"github.com/phdtrack/phdtrack-api/internal/models"
)

// CompletionRatio returns completed/total over a milestone map, in [0,1].
// An empty map yields 0 rather than dividing by zero.
func CompletionRatio(milestones map[string]bool) float64 {
	if len(milestones) == 0 {
		return 0
	}

	completed := 0
	for _, done := range milestones {
		if done {
			completed++
		}
	}

	return float64(completed) / float64(len(milestones))
}

// DaysUntilDue returns the whole days between today and the due date.
// Negative values mean the entry is overdue.
func DaysUntilDue(due models.Date, today time.Time) int {
	start := models.DateOf(today)
	return int(due.Time.Sub(start.Time).Hours() / 24)
}

// PeriodicSummary counts completed entries in a periodic record map.
func PeriodicSummary(entries map[string]models.PeriodicEntry) (done, total int) {
	for _, entry := range entries {
		total++
		if entry.Completed {
			done++
		}
	}
	return done, total
}
