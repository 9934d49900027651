// Package graceperiodtest provides deterministic fixtures for code built on graceperiod.
package graceperiodtest

import (
	"sort"
	"sync"
	"time"

	"github.com/studyshare-api/internal/graceperiod"
)

// Clock is a manually advanced graceperiod.Clock. Ticker callbacks run
// synchronously inside Advance, in due-time order.
type Clock struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	tickers []*ticker
}

var _ graceperiod.Clock = (*Clock)(nil)

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) NewTicker() graceperiod.Ticker {
	return &ticker{clock: c}
}

// Advance moves the clock forward by d, firing every ticker that comes due on the way.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		t := c.nextDueLocked(target)
		if t == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = t.next
		t.next = t.next.Add(t.interval)
		fn := t.fn
		c.mu.Unlock()
		fn()
	}
}

// Active reports how many tickers are started and not stopped.
func (c *Clock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (c *Clock) nextDueLocked(target time.Time) *ticker {
	var due []*ticker
	for _, t := range c.tickers {
		if !t.stopped && !t.next.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].next.Equal(due[j].next) {
			return due[i].seq < due[j].seq
		}
		return due[i].next.Before(due[j].next)
	})
	return due[0]
}

type ticker struct {
	clock    *Clock
	seq      int
	interval time.Duration
	next     time.Time
	fn       func()
	stopped  bool
}

func (t *ticker) Start(interval time.Duration, fn func()) {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t.seq = c.seq
	t.interval = interval
	t.next = c.now.Add(interval)
	t.fn = fn
	c.tickers = append(c.tickers, t)
}

func (t *ticker) Stop() {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	t.stopped = true
}
