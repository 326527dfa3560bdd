package channels

import (
	"strings"
	"sync"
	"time"
)

// DefaultCoalesceInterval is the minimum gap between draft edits. Chat
// platforms throttle message edits hard, so per-token updates are out.
const DefaultCoalesceInterval = time.Second

// Coalescer batches streamed text deltas into periodic draft updates. Push
// is cheap and non-blocking; the flush callback receives the full
// accumulated text on a background timer, at most once per interval.
type Coalescer struct {
	mu        sync.Mutex
	text      strings.Builder
	interval  time.Duration
	flush     func(full string)
	timer     *time.Timer
	lastFlush time.Time
	stopped   bool
}

// NewCoalescer creates a coalescer. interval <= 0 uses the default. flush
// must tolerate being called from a timer goroutine.
func NewCoalescer(interval time.Duration, flush func(full string)) *Coalescer {
	if interval <= 0 {
		interval = DefaultCoalesceInterval
	}
	return &Coalescer{interval: interval, flush: flush, lastFlush: time.Now()}
}

// Push appends a streamed delta and arms a flush if none is pending.
func (c *Coalescer) Push(delta string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.text.WriteString(delta)
	if c.timer != nil {
		return
	}
	delay := c.interval - time.Since(c.lastFlush)
	if delay < 0 {
		delay = 0
	}
	c.timer = time.AfterFunc(delay, c.fire)
}

func (c *Coalescer) fire() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.lastFlush = time.Now()
	full := c.text.String()
	c.mu.Unlock()

	if full != "" && c.flush != nil {
		c.flush(full)
	}
}

// Stop cancels any pending flush and returns the full accumulated text. The
// caller renders the final message itself, so Stop does not flush.
func (c *Coalescer) Stop() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	return c.text.String()
}
