package service

import (
	"context"
	"fmt"
	"time"

	"codeduel/pkg/utils/logger"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const (
	defaultSweepInterval = time.Minute
	defaultSweepBatch    = 50
)

// RoundCloser resolves rounds that ran past their deadline.
type RoundCloser interface {
	CloseExpiredRounds(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// SweeperConfig controls automatic round closing. A zero RoundDuration disables it.
type SweeperConfig struct {
	RoundDuration time.Duration `yaml:"roundDuration"`
	Interval      time.Duration `yaml:"interval"`
	BatchSize     int           `yaml:"batchSize"`
}

// RoundSweeper periodically calculates results for rounds whose time is up.
type RoundSweeper struct {
	closer    RoundCloser
	cfg       SweeperConfig
	scheduler gocron.Scheduler
}

func NewRoundSweeper(closer RoundCloser, cfg SweeperConfig) (*RoundSweeper, error) {
	if closer == nil {
		return nil, fmt.Errorf("round closer is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSweepInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultSweepBatch
	}
	return &RoundSweeper{closer: closer, cfg: cfg}, nil
}

// Start schedules the sweep. It is a no-op when no round duration is configured.
func (s *RoundSweeper) Start(ctx context.Context) error {
	if s.cfg.RoundDuration <= 0 {
		logger.Info(ctx, "round sweeper disabled")
		return nil
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler failed: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(s.cfg.Interval),
		gocron.NewTask(func() { s.Sweep(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("close-expired-rounds"),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("schedule sweep failed: %w", err)
	}
	scheduler.Start()
	s.scheduler = scheduler
	logger.Info(ctx, "round sweeper started",
		zap.Duration("round_duration", s.cfg.RoundDuration),
		zap.Duration("interval", s.cfg.Interval),
	)
	return nil
}

// Sweep runs one pass and returns how many rounds were closed.
func (s *RoundSweeper) Sweep(ctx context.Context) int {
	closed, err := s.closer.CloseExpiredRounds(ctx, s.cfg.RoundDuration, s.cfg.BatchSize)
	if err != nil {
		logger.Error(ctx, "sweep expired rounds failed", zap.Error(err))
		return 0
	}
	if closed > 0 {
		logger.Info(ctx, "expired rounds closed", zap.Int("count", closed))
	}
	return closed
}

func (s *RoundSweeper) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Shutdown()
}
