package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/phdtrack/phdtrack-api/internal/dto"
	"github.com/phdtrack/phdtrack-api/internal/models"
)

// DashboardService produces the derived per-student dashboard view: milestone
// completion ratio and due-date status per RPR/APS entry.
type DashboardService interface {
	GetDashboard(ctx context.Context, identifier string) (dto.DashboardResponse, error)
	GetProgress(ctx context.Context, identifier string) (dto.StudentProgressResponse, error)
}

type dashboardService struct {
	progress ProgressService
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewDashboardService builds the dashboard aggregator. cache may be nil, in
// which case every call recomputes from the dataset.
func NewDashboardService(progress ProgressService, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) DashboardService {
	return &dashboardService{
		progress: progress,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "dashboard_service").Logger(),
		now:      time.Now,
	}
}

func (s *dashboardService) GetDashboard(ctx context.Context, identifier string) (dto.DashboardResponse, error) {
	cacheKey := fmt.Sprintf("dashboard:student:%s", identifier)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.DashboardResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Str("identifier", identifier).Msg("dashboard cache hit")
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read dashboard cache")
		}
	}

	record, err := s.progress.GetRecord(ctx, identifier)
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	now := s.now()
	rprDone, rprTotal := PeriodicSummary(record.RPR)
	apsDone, apsTotal := PeriodicSummary(record.APS)

	response := dto.DashboardResponse{
		Identifier:      identifier,
		CompletionRatio: CompletionRatio(record.Milestones),
		Milestones:      dto.OrderedMilestones(record.Milestones),
		RPRSummary:      dto.PeriodicSummary{Done: rprDone, Total: rprTotal},
		APSSummary:      dto.PeriodicSummary{Done: apsDone, Total: apsTotal},
		UpcomingRPR:     pendingOnly(buildPeriodicViews(models.KindRPR, record.RPR, now)),
		UpcomingAPS:     pendingOnly(buildPeriodicViews(models.KindAPS, record.APS, now)),
		Remarks:         record.Remarks,
	}

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store dashboard cache")
			}
		}
	}

	return response, nil
}

func (s *dashboardService) GetProgress(ctx context.Context, identifier string) (dto.StudentProgressResponse, error) {
	record, err := s.progress.GetRecord(ctx, identifier)
	if err != nil {
		return dto.StudentProgressResponse{}, err
	}

	return buildProgressResponse(identifier, record, s.now()), nil
}

func pendingOnly(views []dto.PeriodicEntryView) []dto.PeriodicEntryView {
	pending := make([]dto.PeriodicEntryView, 0, len(views))
	for _, view := range views {
		if !view.Completed {
			pending = append(pending, view)
		}
	}
	return pending
}
