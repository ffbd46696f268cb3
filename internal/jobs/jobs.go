// Package jobs runs periodic housekeeping: purging expired sessions and
// dropping stale rate-limiter windows.
package jobs

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

type SessionPurger interface {
	DeleteExpired() (int64, error)
}

type LimiterCleaner interface {
	Cleanup() int
}

type Scheduler struct {
	sched    gocron.Scheduler
	sessions SessionPurger
	limiter  LimiterCleaner
	logger   *slog.Logger
}

// New registers the cleanup job to run every interval. Nothing runs until
// Start is called.
func New(sessions SessionPurger, limiter LimiterCleaner, interval time.Duration, logger *slog.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	s := &Scheduler{
		sched:    sched,
		sessions: sessions,
		limiter:  limiter,
		logger:   logger.With("component", "jobs"),
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.Cleanup),
		gocron.WithName("cleanup"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		sched.Shutdown()
		return nil, fmt.Errorf("schedule cleanup: %w", err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
}

// Shutdown stops the scheduler and waits for a running job to return.
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

// Cleanup runs one housekeeping pass.
func (s *Scheduler) Cleanup() {
	if n, err := s.sessions.DeleteExpired(); err != nil {
		s.logger.Error("cleanup expired sessions", "error", err)
	} else if n > 0 {
		s.logger.Info("cleaned up expired sessions", "count", n)
	}
	if n := s.limiter.Cleanup(); n > 0 {
		s.logger.Debug("cleaned up rate limiter", "count", n)
	}
}
