package testutil

import (
	"fmt"
	"sync"
	"time"

	"trail-go/internal/trail"
)

// StubClock returns a fixed time and hands out manually driven tickers.
// Safe for concurrent use.
type StubClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*StubTicker
}

var _ trail.Clock = (*StubClock)(nil)

// NewStubClock creates a StubClock set to the given time.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock returns a StubClock set to 2024-01-15 10:30:00 UTC.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. Tickers are not fired.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *StubClock) NewTicker(d time.Duration) trail.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &StubTicker{
		clock:    c,
		interval: d,
		ch:       make(chan time.Time),
		stopCh:   make(chan struct{}),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// LastTicker returns the most recently created ticker, or nil.
func (c *StubClock) LastTicker() *StubTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tickers) == 0 {
		return nil
	}
	return c.tickers[len(c.tickers)-1]
}

// Tickers returns every ticker created so far.
func (c *StubClock) Tickers() []*StubTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*StubTicker(nil), c.tickers...)
}

// StubTicker fires only when Tick is called. Its channel is unbuffered, so
// Tick returns once the consumer has received the tick.
type StubTicker struct {
	clock    *StubClock
	interval time.Duration
	ch       chan time.Time
	stopCh   chan struct{}
	once     sync.Once
}

func (t *StubTicker) C() <-chan time.Time { return t.ch }

func (t *StubTicker) Stop() {
	t.once.Do(func() { close(t.stopCh) })
}

// Tick advances the clock by the ticker interval and delivers one tick.
// It returns false without delivering if the ticker is stopped.
func (t *StubTicker) Tick() bool {
	select {
	case <-t.stopCh:
		return false
	default:
	}
	t.clock.Advance(t.interval)
	select {
	case t.ch <- t.clock.Now():
		return true
	case <-t.stopCh:
		return false
	}
}

// Interval returns the duration the ticker was created with.
func (t *StubTicker) Interval() time.Duration { return t.interval }

// Stopped reports whether Stop has been called.
func (t *StubTicker) Stopped() bool {
	select {
	case <-t.stopCh:
		return true
	default:
		return false
	}
}

// StubIDGenerator returns sequential IDs: "id-1", "id-2", etc.
type StubIDGenerator struct {
	mu      sync.Mutex
	counter int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("id-%d", g.counter)
}
