package perf

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/redhat-performance/BugZooka/pkg/logx"
)

// SummaryFunc produces and posts one periodic performance summary.
type SummaryFunc func(ctx context.Context) error

// Scheduler posts performance summaries on a cron schedule, e.g.
// "0 9 * * 1" for Mondays at 09:00.
type Scheduler struct {
	schedule string
	summary  SummaryFunc
	cron     *cron.Cron
	logger   *logx.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler. An empty schedule disables it.
func NewScheduler(schedule string, summary SummaryFunc) *Scheduler {
	return &Scheduler{
		schedule: schedule,
		summary:  summary,
		cron:     cron.New(),
		logger:   logx.NewLogger("perf-scheduler"),
	}
}

// Start begins scheduled posting and stops automatically when ctx is
// canceled. A disabled scheduler starts as a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("summary schedule not configured, scheduler disabled")
		return nil
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.summary(ctx); err != nil {
			s.logger.Error("posting scheduled summary: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling summary: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("summary scheduler started with schedule %q", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the scheduler and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("summary scheduler stopped")
}

// Running reports whether the scheduler is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
