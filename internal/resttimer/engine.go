// Package resttimer implements the countdown used between sets.
//
// Every command and every tick is handled by a single goroutine, so two
// inputs that arrive at the same instant (for example Skip and the tick that
// reaches zero) are applied one after the other and the state is never torn.
// The engine knows nothing about sessions; the controller couples to it only
// through explicit calls.
package resttimer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "workout/backend/internal/errors"
)

type Status string

const (
	Idle    Status = "idle"
	Running Status = "running"
	Paused  Status = "paused"
	Expired Status = "expired"
)

type State struct {
	Status           Status `json:"status"`
	RemainingSeconds int    `json:"remainingSeconds"`
	TotalSeconds     int    `json:"totalSeconds"`
}

const (
	DefaultMaxSeconds = 3600
	DefaultInterval   = time.Second
)

var ErrClosed = errors.New("rest timer closed")

type Option func(*Engine)

// WithMaxSeconds sets the upper clamp for Start and Extend.
func WithMaxSeconds(max int) Option {
	return func(e *Engine) {
		if max > 0 {
			e.maxSeconds = max
		}
	}
}

// WithTicker replaces the wall-clock tick source.
func WithTicker(f TickerFunc) Option {
	return func(e *Engine) {
		if f != nil {
			e.newTicker = f
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

type opKind int

const (
	opStart opKind = iota + 1
	opPause
	opResume
	opExtend
	opSkip
	opState
)

type request struct {
	op      opKind
	seconds int
	reply   chan response
}

type response struct {
	state State
	err   error
}

type Engine struct {
	maxSeconds int
	interval   time.Duration
	newTicker  TickerFunc

	inbox     chan request
	updates   chan State
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// owned by the run goroutine
	state  State
	ticker Ticker
}

// New creates an idle engine and starts its loop. Callers must Close it.
func New(opts ...Option) *Engine {
	e := &Engine{
		maxSeconds: DefaultMaxSeconds,
		interval:   DefaultInterval,
		newTicker:  NewWallTicker,
		inbox:      make(chan request),
		updates:    make(chan State, 1),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		state:      State{Status: Idle},
	}
	for _, opt := range opts {
		opt(e)
	}
	go e.run()
	return e
}

// Start begins a countdown of seconds from any state.
func (e *Engine) Start(seconds int) error {
	_, err := e.do(request{op: opStart, seconds: seconds})
	return err
}

// Pause freezes a running countdown.
func (e *Engine) Pause() error {
	_, err := e.do(request{op: opPause})
	return err
}

// Resume continues a paused countdown from the frozen value.
func (e *Engine) Resume() error {
	_, err := e.do(request{op: opResume})
	return err
}

// Extend adds delta seconds (negative shortens) to a running or paused countdown.
func (e *Engine) Extend(delta int) error {
	_, err := e.do(request{op: opExtend, seconds: delta})
	return err
}

// Skip discards the countdown. Safe to call in any state and after Close.
func (e *Engine) Skip() {
	_, _ = e.do(request{op: opSkip})
}

// Cancel is Skip under the name the session lifecycle uses.
func (e *Engine) Cancel() {
	e.Skip()
}

func (e *Engine) State() State {
	st, err := e.do(request{op: opState})
	if err != nil {
		return State{Status: Idle}
	}
	return st
}

// Updates streams state changes to a single subscriber. Only the most recent
// state is buffered; slow readers see the latest value, not every tick.
func (e *Engine) Updates() <-chan State {
	return e.updates
}

// Close stops the loop and any ticker. Idempotent.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.quit) })
	<-e.done
}

func (e *Engine) do(req request) (State, error) {
	req.reply = make(chan response, 1)
	select {
	case e.inbox <- req:
	case <-e.done:
		return State{Status: Idle}, ErrClosed
	}
	select {
	case resp := <-req.reply:
		return resp.state, resp.err
	case <-e.done:
		return State{Status: Idle}, ErrClosed
	}
}

func (e *Engine) run() {
	defer close(e.done)
	defer e.stopTicker()

	for {
		var tick <-chan time.Time
		if e.ticker != nil {
			tick = e.ticker.C()
		}
		select {
		case <-e.quit:
			return
		case req := <-e.inbox:
			st, err := e.handle(req)
			req.reply <- response{state: st, err: err}
		case <-tick:
			e.onTick()
		}
	}
}

func (e *Engine) handle(req request) (State, error) {
	switch req.op {
	case opStart:
		if req.seconds <= 0 {
			return e.state, apperrors.TimerMisuse(fmt.Sprintf("start needs a positive duration, got %d", req.seconds))
		}
		secs := e.clamp(req.seconds)
		e.state = State{Status: Running, RemainingSeconds: secs, TotalSeconds: secs}
		e.startTicker()
		e.publish()

	case opPause:
		if e.state.Status != Running {
			return e.state, apperrors.TimerMisuse("pause while " + string(e.state.Status))
		}
		e.stopTicker()
		e.state.Status = Paused
		e.publish()

	case opResume:
		if e.state.Status != Paused {
			return e.state, apperrors.TimerMisuse("resume while " + string(e.state.Status))
		}
		e.state.Status = Running
		e.startTicker()
		e.publish()

	case opExtend:
		if e.state.Status != Running && e.state.Status != Paused {
			return e.state, apperrors.TimerMisuse("extend while " + string(e.state.Status))
		}
		e.state.RemainingSeconds = e.clamp(e.state.RemainingSeconds + req.seconds)
		if e.state.RemainingSeconds > e.state.TotalSeconds {
			e.state.TotalSeconds = e.state.RemainingSeconds
		}
		if e.state.RemainingSeconds == 0 {
			e.expire()
		}
		e.publish()

	case opSkip:
		e.stopTicker()
		if e.state != (State{Status: Idle}) {
			e.state = State{Status: Idle}
			e.publish()
		}

	case opState:
	}
	return e.state, nil
}

func (e *Engine) onTick() {
	// a tick can only be read while running; guard anyway
	if e.state.Status != Running {
		return
	}
	e.state.RemainingSeconds--
	if e.state.RemainingSeconds <= 0 {
		e.expire()
	}
	e.publish()
}

func (e *Engine) expire() {
	e.stopTicker()
	e.state.RemainingSeconds = 0
	e.state.Status = Expired
}

func (e *Engine) clamp(secs int) int {
	if secs < 0 {
		return 0
	}
	if secs > e.maxSeconds {
		return e.maxSeconds
	}
	return secs
}

func (e *Engine) startTicker() {
	e.stopTicker()
	e.ticker = e.newTicker(e.interval)
}

func (e *Engine) stopTicker() {
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
}

func (e *Engine) publish() {
	st := e.state
	select {
	case <-e.updates:
	default:
	}
	select {
	case e.updates <- st:
	default:
	}
}
