package service

import (
	"context"
	"sync"
	"time"

	"github.com/Harshitk-cp/psychograph/internal/domain"
	"github.com/Harshitk-cp/psychograph/internal/metrics"
	"github.com/Harshitk-cp/psychograph/internal/resilience"
	"go.uber.org/zap"
)

const defaultRetentionInterval = 6 * time.Hour

// AuditRetentionService deletes audit records older than the retention period.
type AuditRetentionService struct {
	store     domain.AuditStore
	retention time.Duration
	clock     resilience.Clock
	metrics   *metrics.Metrics
	logger    *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewAuditRetentionService(s domain.AuditStore, retention time.Duration, clock resilience.Clock, m *metrics.Metrics, logger *zap.Logger) *AuditRetentionService {
	if clock == nil {
		clock = resilience.SystemClock{}
	}
	return &AuditRetentionService{
		store:     s,
		retention: retention,
		clock:     clock,
		metrics:   m,
		logger:    logger,
		interval:  defaultRetentionInterval,
		stopCh:    make(chan struct{}),
	}
}

func (s *AuditRetentionService) SetInterval(d time.Duration) {
	s.interval = d
}

// Start runs retention on a periodic schedule in a background goroutine.
func (s *AuditRetentionService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("audit retention started",
			zap.Duration("interval", s.interval),
			zap.Duration("retention", s.retention))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				_, _ = s.RunOnce(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("audit retention stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the retention loop.
func (s *AuditRetentionService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *AuditRetentionService) RunOnce(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	cutoff := s.clock.Now().Add(-s.retention)
	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to purge audit records", zap.Error(err))
		return 0, err
	}
	if deleted > 0 {
		s.metrics.ObserveAuditPurged(deleted)
		s.logger.Info("purged audit records", zap.Int64("count", deleted), zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}
