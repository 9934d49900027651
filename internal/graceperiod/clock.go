package graceperiod

import (
	"sync"
	"time"
)

// Ticker invokes a callback every interval until stopped.
// Implementations must not start the next wait before the previous callback returns.
type Ticker interface {
	Start(interval time.Duration, fn func())
	Stop()
}

// Clock abstracts time so tests can drive ticks without wall-clock waits.
type Clock interface {
	Now() time.Time
	NewTicker() Ticker
}

// RealClock uses the system time and one goroutine per ticker.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) NewTicker() Ticker { return &timerTicker{stop: make(chan struct{})} }

type timerTicker struct {
	stop chan struct{}
	once sync.Once
}

func (t *timerTicker) Start(interval time.Duration, fn func()) {
	go func() {
		timer := time.NewTimer(interval)
		defer timer.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-timer.C:
			}
			// Stop may have raced with the timer firing.
			select {
			case <-t.stop:
				return
			default:
			}
			fn()
			timer.Reset(interval)
		}
	}()
}

func (t *timerTicker) Stop() {
	t.once.Do(func() { close(t.stop) })
}
