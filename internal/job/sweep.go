package job

import (
	"context"
	"fmt"
	"time"

	"hostel-booking/internal/usecase"
	"hostel-booking/pkg/utils"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Sweeper is the part of the payment engine the scheduler drives.
type Sweeper interface {
	TimeoutSweep(ctx context.Context, now time.Time) (usecase.SweepResult, error)
}

// SweepScheduler runs the payment timeout sweep on a fixed interval. A run
// that overlaps the previous one is skipped.
type SweepScheduler struct {
	scheduler gocron.Scheduler
	sweeper   Sweeper
	timeout   time.Duration
	log       *zap.Logger
}

func NewSweepScheduler(sweeper Sweeper, cfg utils.PaymentConfig, log *zap.Logger) (*SweepScheduler, error) {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	s := &SweepScheduler{
		scheduler: scheduler,
		sweeper:   sweeper,
		timeout:   interval,
		log:       log.With(zap.String("job", "payment-timeout-sweep")),
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.run),
		gocron.WithName("payment-timeout-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule timeout sweep: %w", err)
	}

	return s, nil
}

func (s *SweepScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.sweeper.TimeoutSweep(ctx, time.Now()); err != nil {
		s.log.Error("Timeout sweep failed", zap.Error(err))
	}
}

func (s *SweepScheduler) Start() {
	s.log.Info("Starting timeout sweep")
	s.scheduler.Start()
}

func (s *SweepScheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}
