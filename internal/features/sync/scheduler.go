package sync

import (
	"context"
	"fmt"
	stdsync "sync"

	"go-glsync/internal/config"
	"go-glsync/internal/features/mapping"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sessionSweepSchedule = "@every 1m"

type SchedulerService interface {
	Start(ctx context.Context) error
	Stop() error
	// Entries reports how many jobs are registered
	Entries() int
}

type SchedulerServiceImpl struct {
	executor ExecutorService
	sessions *mapping.SessionStore
	schedule string
	logger   *zap.Logger

	scheduler *cron.Cron
	mu        stdsync.Mutex
}

func NewSchedulerService(executor ExecutorService, sessions *mapping.SessionStore, cfg *config.Config, log *zap.Logger) SchedulerService {
	return &SchedulerServiceImpl{
		executor: executor,
		sessions: sessions,
		schedule: cfg.SyncSchedule,
		logger:   log,
	}
}

func (s *SchedulerServiceImpl) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule != "" {
		if _, err := cron.ParseStandard(s.schedule); err != nil {
			return fmt.Errorf("invalid SYNC_SCHEDULE %q: %w", s.schedule, err)
		}
	}

	s.scheduler = cron.New()
	if s.sessions != nil {
		if _, err := s.scheduler.AddFunc(sessionSweepSchedule, s.sweepSessions); err != nil {
			return err
		}
	}
	if s.schedule != "" {
		if _, err := s.scheduler.AddFunc(s.schedule, s.runEnabled); err != nil {
			return err
		}
		s.logger.Info("scheduled sync enabled", zap.String("schedule", s.schedule))
	}

	s.scheduler.Start()
	return nil
}

func (s *SchedulerServiceImpl) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		ctx := s.scheduler.Stop()
		<-ctx.Done()
		s.scheduler = nil
	}
	return nil
}

func (s *SchedulerServiceImpl) Entries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler == nil {
		return 0
	}
	return len(s.scheduler.Entries())
}

func (s *SchedulerServiceImpl) runEnabled() {
	n, err := s.executor.TriggerEnabled(context.Background())
	if err != nil {
		s.logger.Error("scheduled sync run failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled sync run finished", zap.Int("triggered", n))
}

func (s *SchedulerServiceImpl) sweepSessions() {
	if n := s.sessions.Sweep(); n > 0 {
		s.logger.Debug("expired column edit sessions removed", zap.Int("count", n))
	}
}
