package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RetentionService purges stored runs older than the retention window on a
// cron schedule, along with their cached reports.
type RetentionService struct {
	store     *RunStore
	cache     *CacheService
	logger    *logrus.Logger
	cron      *cron.Cron
	schedule  string
	retention time.Duration
	mu        sync.Mutex
	isRunning bool
	onPurge   func(deleted int64)
	now       func() time.Time
}

func NewRetentionService(store *RunStore, cache *CacheService, schedule string, retention time.Duration, logger *logrus.Logger) *RetentionService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RetentionService{
		store:     store,
		cache:     cache,
		logger:    logger,
		cron:      cron.New(),
		schedule:  schedule,
		retention: retention,
		now:       time.Now,
	}
}

// OnPurge registers fn to receive the row count of every successful purge.
// Call it before Start.
func (s *RetentionService) OnPurge(fn func(deleted int64)) {
	s.onPurge = fn
}

// Start schedules the purge job
func (s *RetentionService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("retention service is already running")
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.Purge(context.Background()); err != nil {
			s.logger.WithError(err).Error("Scheduled run cleanup failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}

	s.cron.Start()
	s.isRunning = true

	s.logger.WithFields(logrus.Fields{
		"schedule":  s.schedule,
		"retention": s.retention.String(),
	}).Info("Run retention service started")
	return nil
}

// Stop halts the scheduler and waits for a running purge to finish
func (s *RetentionService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	<-s.cron.Stop().Done()
	s.isRunning = false
	s.logger.Info("Run retention service stopped")
}

// Purge deletes runs older than the retention window and evicts their
// cached reports. Cache failures are logged, not returned.
func (s *RetentionService) Purge(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	ids, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	deleted := int64(len(ids))

	swept := 0
	if s.cache != nil {
		if len(ids) > 0 {
			keys := make([]string, len(ids))
			for i, id := range ids {
				keys[i] = RunCacheKey(id)
			}
			if err := s.cache.Delete(ctx, keys...); err != nil {
				s.logger.WithError(err).Warn("Failed to evict purged runs from cache")
			}
		}
		swept = s.cache.SweepExpired()
	}

	if s.onPurge != nil {
		s.onPurge(deleted)
	}

	if deleted > 0 || swept > 0 {
		s.logger.WithFields(logrus.Fields{
			"deleted":       deleted,
			"cache_expired": swept,
			"cutoff":        cutoff.Format(time.RFC3339),
		}).Info("Purged expired runs")
	}
	return deleted, nil
}
