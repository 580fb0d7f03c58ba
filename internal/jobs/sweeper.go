// Package jobs runs the periodic housekeeping that keeps stored state tidy
// between requests. Nothing here is needed for correctness: stale participants
// and expired polls are also cleaned up lazily when read.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const sweepTimeout = 30 * time.Second

// Sweepable is cleaned up on every scheduled run.
type Sweepable interface {
	Sweep(ctx context.Context) error
}

type Sweeper struct {
	cron *cron.Cron
}

// NewSweeper schedules target.Sweep. Runs never overlap; a run still going
// when the next one is due makes that one skip.
func NewSweeper(schedule string, target Sweepable) (*Sweeper, error) {
	logger := slogLogger{}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger)))

	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if err := target.Sweep(ctx); err != nil {
			slog.Error("sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule sweep %q: %w", schedule, err)
	}
	return &Sweeper{cron: c}, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
	slog.Info("sweeper started")
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("sweeper stopped")
}

type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
