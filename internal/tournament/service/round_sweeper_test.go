package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"codeduel/internal/tournament/service"
)

type fakeCloser struct {
	calls     int
	olderThan time.Duration
	limit     int
	closed    int
	err       error
}

func (f *fakeCloser) CloseExpiredRounds(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	f.calls++
	f.olderThan = olderThan
	f.limit = limit
	return f.closed, f.err
}

func TestRoundSweeper(t *testing.T) {
	if _, err := service.NewRoundSweeper(nil, service.SweeperConfig{}); err == nil {
		t.Fatalf("expected error for nil closer")
	}

	closer := &fakeCloser{closed: 2}
	sweeper, err := service.NewRoundSweeper(closer, service.SweeperConfig{RoundDuration: 30 * time.Minute})
	if err != nil {
		t.Fatalf("new sweeper failed: %v", err)
	}
	if n := sweeper.Sweep(context.Background()); n != 2 {
		t.Fatalf("expected 2 closed, got %d", n)
	}
	if closer.olderThan != 30*time.Minute || closer.limit != 50 {
		t.Fatalf("unexpected sweep args: %v %d", closer.olderThan, closer.limit)
	}

	closer.err = errors.New("db down")
	if n := sweeper.Sweep(context.Background()); n != 0 {
		t.Fatalf("failed sweep should report 0, got %d", n)
	}
}

func TestRoundSweeperDisabled(t *testing.T) {
	closer := &fakeCloser{}
	sweeper, err := service.NewRoundSweeper(closer, service.SweeperConfig{})
	if err != nil {
		t.Fatalf("new sweeper failed: %v", err)
	}
	if err := sweeper.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := sweeper.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if closer.calls != 0 {
		t.Fatalf("disabled sweeper must not run")
	}
}
