package resttimer

import (
	"sync"
	"time"
)

// Ticker is the tick source the engine reads while a countdown runs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFunc func(d time.Duration) Ticker

type wallTicker struct {
	t *time.Ticker
}

func NewWallTicker(d time.Duration) Ticker {
	return wallTicker{t: time.NewTicker(d)}
}

func (w wallTicker) C() <-chan time.Time { return w.t.C }
func (w wallTicker) Stop()               { w.t.Stop() }

// ManualTicker hands out tickers that only fire when Tick is called.
// Tick returns once the engine loop has received the tick, so a following
// engine call observes its effect.
type ManualTicker struct {
	ch chan time.Time

	mu      sync.Mutex
	started int
	stopped int
}

func NewManualTicker() *ManualTicker {
	return &ManualTicker{ch: make(chan time.Time)}
}

func (m *ManualTicker) Factory() TickerFunc {
	return func(time.Duration) Ticker {
		m.mu.Lock()
		m.started++
		m.mu.Unlock()
		return manualHandle{m: m}
	}
}

// Tick delivers one tick. It reports false when no running countdown picked
// it up within a second.
func (m *ManualTicker) Tick() bool {
	select {
	case m.ch <- time.Now():
		return true
	case <-time.After(time.Second):
		return false
	}
}

// TickN delivers n ticks and reports how many were consumed.
func (m *ManualTicker) TickN(n int) int {
	consumed := 0
	for i := 0; i < n; i++ {
		if !m.Tick() {
			break
		}
		consumed++
	}
	return consumed
}

// Started counts the tickers handed out.
func (m *ManualTicker) Started() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

type manualHandle struct {
	m *ManualTicker
}

func (h manualHandle) C() <-chan time.Time { return h.m.ch }

func (h manualHandle) Stop() {
	h.m.mu.Lock()
	h.m.stopped++
	h.m.mu.Unlock()
}
