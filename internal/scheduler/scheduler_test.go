package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (c *countingRefresher) RefreshSites(context.Context) error {
	c.calls.Add(1)
	return c.err
}

type fixedChecker struct {
	valid bool
	err   error
}

func (f fixedChecker) CheckToken(context.Context) (bool, error) {
	return f.valid, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestScheduler_RefreshesOnInterval(t *testing.T) {
	sites := &countingRefresher{}
	s := NewScheduler(sites, fixedChecker{valid: true}, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	assert.Eventually(t, func() bool { return sites.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestScheduler_SkipsWhenSessionInvalid(t *testing.T) {
	tests := []struct {
		name    string
		checker TokenChecker
	}{
		{name: "invalid token", checker: fixedChecker{valid: false}},
		{name: "check failed", checker: fixedChecker{err: errors.New("backend down")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sites := &countingRefresher{}
			s := NewScheduler(sites, tt.checker, time.Hour, testLogger())

			s.runRefresh(context.Background())

			assert.Zero(t, sites.calls.Load())
		})
	}
}

func TestScheduler_NoChecker(t *testing.T) {
	sites := &countingRefresher{err: errors.New("boom")}
	s := NewScheduler(sites, nil, time.Hour, testLogger())

	s.runRefresh(context.Background())

	assert.EqualValues(t, 1, sites.calls.Load())
}

func TestScheduler_Disabled(t *testing.T) {
	sites := &countingRefresher{}
	s := NewScheduler(sites, nil, 0, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, s.Start(ctx), context.DeadlineExceeded)
	assert.Zero(t, sites.calls.Load())
}
