package monitor

import (
	"context"
	"time"

	"github.com/rewired-gh/crossarb/internal/logger"
)

// DedupRetention is how long an unseen pair stays in the analytics dedup cache.
const DedupRetention = 24 * time.Hour

// CycleNotifier reports cycle-level failures and recoveries.
type CycleNotifier interface {
	SendCycleError(ctx context.Context, err error, failures int) error
	SendRecovery(ctx context.Context, failures int) error
}

// Scheduler runs a cycle immediately and then on every tick of interval.
type Scheduler struct {
	monitor  *Monitor
	interval time.Duration
	notifier CycleNotifier
	onResult func(*CycleResult, error)

	consecutiveFailures int
}

// NewScheduler creates a Scheduler. notifier and onResult may be nil.
func NewScheduler(m *Monitor, interval time.Duration, notifier CycleNotifier, onResult func(*CycleResult, error)) *Scheduler {
	return &Scheduler{
		monitor:  m,
		interval: interval,
		notifier: notifier,
		onResult: onResult,
	}
}

// ConsecutiveFailures returns the current failure streak.
func (s *Scheduler) ConsecutiveFailures() int {
	return s.consecutiveFailures
}

// RunOnce executes a single cycle and applies failure tracking.
func (s *Scheduler) RunOnce(ctx context.Context, cycleTime time.Time) (*CycleResult, error) {
	result, err := s.monitor.RunCycle(ctx, cycleTime)
	s.handleCycleResult(ctx, err)

	if dropped := s.monitor.Collector().Prune(cycleTime, DedupRetention); dropped > 0 {
		logger.Debug("Pruned %d stale pairs from the dedup cache", dropped)
	}
	if s.onResult != nil {
		s.onResult(result, err)
	}
	return result, err
}

// handleCycleResult notifies on the first failure of a streak and on recovery.
func (s *Scheduler) handleCycleResult(ctx context.Context, err error) {
	if err != nil {
		s.consecutiveFailures++
		logger.Error("Monitoring cycle failed: %v", err)
		if s.consecutiveFailures == 1 && s.notifier != nil {
			if sendErr := s.notifier.SendCycleError(ctx, err, s.consecutiveFailures); sendErr != nil {
				logger.Warn("Failed to send error notification: %v", sendErr)
			}
		}
		return
	}

	if s.consecutiveFailures > 0 && s.notifier != nil {
		if sendErr := s.notifier.SendRecovery(ctx, s.consecutiveFailures); sendErr != nil {
			logger.Warn("Failed to send recovery notification: %v", sendErr)
		}
	}
	s.consecutiveFailures = 0
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Debug("Running initial monitoring cycle")
	_, _ = s.RunOnce(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			logger.Info("Scheduler stopped")
			return
		case tickTime := <-ticker.C:
			logger.Debug("Starting scheduled monitoring cycle")
			_, _ = s.RunOnce(ctx, tickTime)
		}
	}
}
