package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gw2trader/tradepost/internal/domain"
	"github.com/gw2trader/tradepost/internal/ports"
)

// StatsService implements the ports.StatsService interface
type StatsService struct {
	itemRepo     ports.ItemRepository
	snapshotRepo ports.SnapshotRepository
	official     ports.OrderBookSource
	startTime    time.Time
	logger       *slog.Logger

	mu           sync.RWMutex
	lastRun      *domain.RunReport
	runSuccesses int64
	runFailures  int64
}

// NewStatsService creates a new stats service
func NewStatsService(
	itemRepo ports.ItemRepository,
	snapshotRepo ports.SnapshotRepository,
	official ports.OrderBookSource,
	logger *slog.Logger,
) *StatsService {
	return &StatsService{
		itemRepo:     itemRepo,
		snapshotRepo: snapshotRepo,
		official:     official,
		startTime:    time.Now(),
		logger:       logger.With("component", "stats_service"),
	}
}

// Stats returns the current operational view
func (s *StatsService) Stats(ctx context.Context) (*domain.Stats, error) {
	s.mu.RLock()
	lastRun := s.lastRun
	successes := s.runSuccesses
	failures := s.runFailures
	s.mu.RUnlock()

	storeStatus := "healthy"
	trackedItems, err := s.itemRepo.Count(ctx)
	if err != nil {
		s.logger.Error("failed to count items", "error", err)
		trackedItems = 0
		storeStatus = "unhealthy"
	}

	totalSnapshots, err := s.snapshotRepo.Count(ctx)
	if err != nil {
		s.logger.Error("failed to count snapshots", "error", err)
		totalSnapshots = 0
	}

	sourceStatus := "healthy"
	if err := s.official.Ping(ctx); err != nil {
		sourceStatus = "unhealthy"
	}

	return &domain.Stats{
		Uptime:         time.Since(s.startTime).Seconds(),
		TrackedItems:   trackedItems,
		TotalSnapshots: totalSnapshots,
		LastRun:        lastRun,
		RunSuccesses:   successes,
		RunFailures:    failures,
		StoreStatus:    storeStatus,
		SourceStatus:   sourceStatus,
	}, nil
}

// RecordRun records the outcome of a refresh run
func (s *StatsService) RecordRun(report *domain.RunReport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastRun = report
	if err != nil {
		s.runFailures++
		return
	}
	s.runSuccesses++
}

// Ensure StatsService implements ports.StatsService
var _ ports.StatsService = (*StatsService)(nil)
