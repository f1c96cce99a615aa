package core

import (
	"context"
	"log/slog"
	"time"
)

// Schedule configures the periodic harvest loop of the server.
type Schedule struct {
	Categories      []string
	Interval        time.Duration
	Retention       time.Duration
	CleanupInterval time.Duration
}

type SchedulerService struct {
	harvester *HarvestService
	store     ResultStore
	schedule  Schedule
	logger    *slog.Logger
}

func NewSchedulerService(harvester *HarvestService, store ResultStore, schedule Schedule, logger *slog.Logger) *SchedulerService {
	if logger == nil {
		logger = slog.Default()
	}
	if schedule.CleanupInterval <= 0 {
		schedule.CleanupInterval = 24 * time.Hour
	}
	return &SchedulerService{harvester: harvester, store: store, schedule: schedule, logger: logger}
}

// Start launches the harvest and retention loops. Both stop when ctx is done.
func (s *SchedulerService) Start(ctx context.Context) {
	if len(s.schedule.Categories) > 0 && s.schedule.Interval > 0 {
		go s.harvestLoop(ctx)
	}
	if s.store != nil && s.schedule.Retention > 0 {
		go s.runRetentionPolicy(ctx)
	}
}

func (s *SchedulerService) harvestLoop(ctx context.Context) {
	s.harvestOnce(ctx)

	ticker := time.NewTicker(s.schedule.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.harvestOnce(ctx)
		}
	}
}

// harvestOnce harvests every configured category in order.
func (s *SchedulerService) harvestOnce(ctx context.Context) {
	for _, locator := range s.schedule.Categories {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, err := s.harvester.HarvestCategory(ctx, locator); err != nil {
			s.logger.Error("scheduled harvest failed", "url", locator, "error", err)
		}
	}
}

// runRetentionPolicy deletes harvest runs older than the retention window.
func (s *SchedulerService) runRetentionPolicy(ctx context.Context) {
	ticker := time.NewTicker(s.schedule.CleanupInterval)
	defer ticker.Stop()

	// Run immediately on startup
	s.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup(ctx)
		}
	}
}

func (s *SchedulerService) cleanup(ctx context.Context) {
	count, err := s.store.DeleteOldRuns(ctx, s.schedule.Retention)
	if err != nil {
		s.logger.Error("retention cleanup failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("retention cleanup removed old runs", "deleted", count)
	}
}
