// Package scheduler sweeps persisted deferred tasks. Tasks live in the
// database so a process restart never loses a scheduled reminder.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hail/internal/domain"
	"hail/internal/realtime"
	"hail/internal/repository"
)

// Config tunes the sweep loop.
type Config struct {
	// Interval between sweeps.
	Interval time.Duration

	// SurveyDelay is how long after completion the survey reminder fires.
	SurveyDelay time.Duration

	// BatchSize caps tasks dispatched per sweep.
	BatchSize int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    30 * time.Second,
		SurveyDelay: 24 * time.Hour,
		BatchSize:   100,
	}
}

// Scheduler persists deferred tasks and dispatches the due ones.
type Scheduler struct {
	tasks    repository.TaskRepository
	notifier *realtime.Notifier
	log      *zap.Logger
	cfg      Config

	now func() time.Time
}

// New creates a Scheduler.
func New(tasks repository.TaskRepository, notifier *realtime.Notifier, log *zap.Logger, cfg Config) *Scheduler {
	return &Scheduler{
		tasks:    tasks,
		notifier: notifier,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}
}

// ScheduleSurvey schedules the post-service survey reminder for a
// completed booking.
func (s *Scheduler) ScheduleSurvey(ctx context.Context, b *domain.Booking) error {
	return s.tasks.Create(ctx, &domain.ScheduledTask{
		ID:        uuid.New().String(),
		Kind:      domain.TaskSurveyReminder,
		RefID:     b.ID,
		UserID:    b.UserID,
		RunAt:     s.now().Add(s.cfg.SurveyDelay),
		CreatedAt: s.now(),
	})
}

// Run sweeps until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep dispatches one batch of due tasks and marks them done.
func (s *Scheduler) Sweep(ctx context.Context) {
	due, err := s.tasks.Due(ctx, s.now(), s.cfg.BatchSize)
	if err != nil {
		s.log.Warn("task sweep failed", zap.Error(err))
		return
	}
	for _, t := range due {
		s.dispatch(ctx, t)
		if err := s.tasks.MarkDone(ctx, t.ID); err != nil {
			s.log.Warn("task completion failed", zap.String("task_id", t.ID), zap.Error(err))
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, t *domain.ScheduledTask) {
	switch t.Kind {
	case domain.TaskSurveyReminder:
		s.notifier.SurveyReminder(ctx, t.UserID, t.RefID)
	default:
		s.log.Warn("unknown task kind", zap.String("task_id", t.ID), zap.String("kind", string(t.Kind)))
	}
}
