package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/lvidal/pricealert/internal/alerts"
	"github.com/lvidal/pricealert/internal/services"
	"github.com/lvidal/pricealert/pkg/logger"
)

const (
	defaultAlertSpec        = "@every 15m"
	defaultVerificationSpec = "@every 5m"
)

// Scheduler drives the background jobs: the periodic alert-evaluation pass
// and the verification-email sweep.
type Scheduler struct {
	engine       *alerts.Engine
	verification *services.VerificationService
	cron         *cron.Cron
	now          func() time.Time
	log          *zap.Logger
	enabled      bool

	alertSchedule        string
	verificationSchedule string
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for scheduling.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAlertSchedule overrides the cron specification for the alert pass.
func WithAlertSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.alertSchedule = spec
		}
	}
}

// WithVerificationSchedule overrides the cron specification for the verification sweep.
func WithVerificationSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.verificationSchedule = spec
		}
	}
}

// New constructs a Scheduler. Any nil dependency results in the
// corresponding job being skipped.
func New(engine *alerts.Engine, verification *services.VerificationService, opts ...Option) *Scheduler {
	sched := &Scheduler{
		engine:               engine,
		verification:         verification,
		now:                  time.Now,
		alertSchedule:        defaultAlertSpec,
		verificationSchedule: defaultVerificationSpec,
		log:                  logger.WithModule("scheduler"),
	}

	for _, opt := range opts {
		opt(sched)
	}

	if sched.cron == nil {
		sched.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	sched.enabled = sched.engine != nil || sched.verification != nil

	return sched
}

// Start registers the jobs with the cron scheduler and launches it if at
// least one job is enabled.
func (s *Scheduler) Start() error {
	if !s.enabled {
		return nil
	}

	if s.engine != nil {
		if _, err := s.cron.AddFunc(s.alertSchedule, func() {
			ctx := context.Background()
			if _, err := s.engine.Run(ctx); err != nil {
				s.log.Warn("alert pass failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if s.verification != nil {
		if _, err := s.cron.AddFunc(s.verificationSchedule, func() {
			ctx := context.Background()
			if _, err := s.verification.Sweep(ctx); err != nil {
				s.log.Warn("verification sweep failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes all configured jobs sequentially. Primarily used in tests
// and during graceful shutdown.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if s.verification != nil {
		if _, err := s.verification.Sweep(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if s.engine != nil {
		if _, err := s.engine.Run(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
