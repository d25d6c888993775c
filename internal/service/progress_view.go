package service

import (
	"time"

	"github.com/phdtrack/phdtrack-api/internal/dto"
	"github.com/phdtrack/phdtrack-api/internal/models"
)

// buildProgressResponse renders a record snapshot into the full progress view.
// Day counts are only reported for incomplete entries; completed entries carry
// no due-date banner.
func buildProgressResponse(identifier string, record models.StudentRecord, now time.Time) dto.StudentProgressResponse {
	return dto.StudentProgressResponse{
		Identifier:          identifier,
		Milestones:          dto.OrderedMilestones(record.Milestones),
		Remarks:             record.Remarks,
		RPR:                 buildPeriodicViews(models.KindRPR, record.RPR, now),
		APS:                 buildPeriodicViews(models.KindAPS, record.APS, now),
		ForcePasswordChange: record.ForcePasswordChange,
	}
}

// buildPeriodicViews walks the fixed key range in order (rpr1..rpr6,
// aps1..aps3) so the response order is stable regardless of map iteration.
func buildPeriodicViews(kind string, entries map[string]models.PeriodicEntry, now time.Time) []dto.PeriodicEntryView {
	count := models.EntryCount(kind)
	views := make([]dto.PeriodicEntryView, 0, count)

	for i := 1; i <= count; i++ {
		key := models.PeriodicKey(kind, i)
		entry, ok := entries[key]
		if !ok {
			continue
		}

		view := dto.PeriodicEntryView{
			Key:       key,
			Date:      entry.Date.String(),
			Completed: entry.Completed,
		}
		if !entry.Completed {
			days := DaysUntilDue(entry.Date, now)
			view.DaysUntilDue = &days
			view.Overdue = days < 0
		}
		views = append(views, view)
	}

	return views
}
