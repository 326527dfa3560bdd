package channels

import (
	"sync"
	"testing"
	"time"
)

func TestCoalescerBatchesDeltas(t *testing.T) {
	var mu sync.Mutex
	var flushes []string
	c := NewCoalescer(20*time.Millisecond, func(full string) {
		mu.Lock()
		flushes = append(flushes, full)
		mu.Unlock()
	})

	c.Push("Hello")
	c.Push(", ")
	c.Push("world")

	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	got := append([]string(nil), flushes...)
	mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("flushes = %v, want one batched flush", got)
	}
	if got[0] != "Hello, world" {
		t.Errorf("flush = %q", got[0])
	}
}

func TestCoalescerRespectsInterval(t *testing.T) {
	var mu sync.Mutex
	var times []time.Time
	c := NewCoalescer(50*time.Millisecond, func(string) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
	})

	c.Push("a")
	time.Sleep(60 * time.Millisecond)
	c.Push("b")
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	got := append([]time.Time(nil), times...)
	mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("flushes = %d, want 2", len(got))
	}
	if gap := got[1].Sub(got[0]); gap < 40*time.Millisecond {
		t.Errorf("flushes %v apart, want at least the interval", gap)
	}
}

func TestCoalescerStopReturnsFullText(t *testing.T) {
	c := NewCoalescer(time.Hour, func(string) {
		t.Error("flush fired despite the long interval")
	})
	c.Push("final ")
	c.Push("answer")

	if got := c.Stop(); got != "final answer" {
		t.Errorf("Stop() = %q", got)
	}

	// Pushes after Stop are dropped.
	c.Push("late")
	if got := c.Stop(); got != "final answer" {
		t.Errorf("after late push Stop() = %q", got)
	}
}

func TestRateLimiterBurstAndRefill(t *testing.T) {
	r := NewRateLimiter(100, 2)

	if !r.Allow() || !r.Allow() {
		t.Fatal("burst tokens unavailable")
	}
	if r.Allow() {
		t.Fatal("third immediate call allowed")
	}

	time.Sleep(30 * time.Millisecond)
	if !r.Allow() {
		t.Error("token not refilled")
	}
}
