package services

import (
	"log/slog"
	"sync"
	"time"
)

// Countdown is the single server-side poll timer. It is either idle or running
// one poll; Start on a running countdown fails, so replacing a poll means
// Cancel first.
//
// Callbacks run on the countdown goroutine while its lock is held, which keeps
// a tick or end signal of a cancelled poll from being emitted after Cancel
// returns. They must not call back into the Countdown and must not block.
type Countdown struct {
	interval time.Duration
	onTick   func(pollID string, remaining int)
	onEnd    func(pollID string)

	mu        sync.Mutex
	pollID    string
	remaining int
	stopCh    chan struct{}
}

func NewCountdown(interval time.Duration, onTick func(pollID string, remaining int), onEnd func(pollID string)) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	if onTick == nil {
		onTick = func(string, int) {}
	}
	if onEnd == nil {
		onEnd = func(string) {}
	}
	return &Countdown{interval: interval, onTick: onTick, onEnd: onEnd}
}

func (c *Countdown) Start(pollID string, seconds int) error {
	if seconds <= 0 {
		return invalid("duration", "must be greater than 0")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopCh != nil {
		return ErrCountdownRunning
	}

	stopCh := make(chan struct{})
	c.stopCh = stopCh
	c.pollID = pollID
	c.remaining = seconds
	go c.run(pollID, stopCh)

	slog.Debug("countdown started", "poll_id", pollID, "seconds", seconds)
	return nil
}

// Cancel stops a running countdown without signalling the end of the poll.
// It reports whether a countdown was running.
func (c *Countdown) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopCh == nil {
		return false
	}
	close(c.stopCh)
	slog.Debug("countdown cancelled", "poll_id", c.pollID, "remaining", c.remaining)
	c.stopCh = nil
	c.pollID = ""
	c.remaining = 0
	return true
}

func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopCh != nil
}

// Remaining returns the poll being counted and its seconds left; pollID is
// empty when idle.
func (c *Countdown) Remaining() (pollID string, remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pollID, c.remaining
}

func (c *Countdown) run(pollID string, stopCh chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if done := c.tick(stopCh, pollID); done {
				return
			}
		}
	}
}

func (c *Countdown) tick(stopCh chan struct{}, pollID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	// cancelled between the tick firing and acquiring the lock
	if c.stopCh != stopCh {
		return true
	}

	c.remaining--
	c.onTick(pollID, c.remaining)
	if c.remaining > 0 {
		return false
	}

	c.stopCh = nil
	c.pollID = ""
	c.onEnd(pollID)
	slog.Debug("countdown finished", "poll_id", pollID)
	return true
}
