// Package timer provides the per-answer countdown.
package timer

import (
	"sync"
	"time"
)

// DefaultSeconds is the answer window length when none is configured.
const DefaultSeconds = 30

// Countdown decrements a remaining-seconds counter once per interval while
// running. It freezes while paused and fires the expiry callback exactly
// once when the counter reaches zero; later ticks are no-ops until Reset.
// Callbacks run on the countdown goroutine without internal locks held.
type Countdown struct {
	interval time.Duration
	onTick   func(remaining int)
	onExpire func()

	mu        sync.Mutex
	full      int
	remaining int
	paused    bool
	fired     bool
	stopped   bool

	stop     chan struct{}
	stopOnce sync.Once
}

// Start arms a countdown at full duration and begins ticking.
func Start(seconds int, interval time.Duration, onTick func(remaining int), onExpire func()) *Countdown {
	if seconds <= 0 {
		seconds = DefaultSeconds
	}
	if interval <= 0 {
		interval = time.Second
	}
	c := &Countdown{
		interval:  interval,
		onTick:    onTick,
		onExpire:  onExpire,
		full:      seconds,
		remaining: seconds,
		stop:      make(chan struct{}),
	}
	go c.run()
	return c
}

// Pause freezes the counter at its current value.
func (c *Countdown) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Resume continues from the frozen value.
func (c *Countdown) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

// Reset rearms the counter at full duration and allows expiry to fire again.
func (c *Countdown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remaining = c.full
	c.fired = false
	c.paused = false
}

// Stop ends the countdown permanently.
func (c *Countdown) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.stopOnce.Do(func() { close(c.stop) })
}

// Remaining returns the current counter value.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			tick, expire, remaining := c.advance()
			if tick != nil {
				tick(remaining)
			}
			if expire != nil {
				expire()
			}
		}
	}
}

func (c *Countdown) advance() (tick func(int), expire func(), remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || c.paused || c.fired || c.remaining <= 0 {
		return nil, nil, c.remaining
	}

	c.remaining--
	remaining = c.remaining
	tick = c.onTick
	if c.remaining <= 0 {
		c.fired = true
		expire = c.onExpire
	}
	return tick, expire, remaining
}
