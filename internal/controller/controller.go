// Package controller runs one workout session: it recovers the open session
// after a restart, applies commands one at a time against the phase machine
// and the store, keeps the derived set cursor, and drives the rest timer.
//
// A single goroutine owns the in-memory projection. Commands are sent to it
// with a reply channel and durable writes complete before memory changes, so
// a failed write never advances the cursor or the phase.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"workout/backend/internal/clock"
	"workout/backend/internal/fsm"
	"workout/backend/internal/metrics"
	"workout/backend/internal/model"
	"workout/backend/internal/resttimer"
)

const (
	DefaultRestSeconds  = 90
	DefaultWriteTimeout = 5 * time.Second
)

var (
	ErrClosed         = errors.New("controller closed")
	ErrAlreadyStarted = errors.New("controller already started")
)

type Option func(*Controller)

func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) { ctl.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(ctl *Controller) { ctl.metrics = m }
}

// WithTimerOptions configures the rest timer created by the controller.
func WithTimerOptions(opts ...resttimer.Option) Option {
	return func(ctl *Controller) { ctl.timerOpts = append(ctl.timerOpts, opts...) }
}

// WithDefaultRestSeconds is the rest used when neither the exercise instance
// nor the catalog names one.
func WithDefaultRestSeconds(secs int) Option {
	return func(ctl *Controller) {
		if secs > 0 {
			ctl.defaultRest = secs
		}
	}
}

// WithRestAfterWarmup controls whether completing a warm-up set starts the
// rest timer. Enabled by default.
func WithRestAfterWarmup(enabled bool) Option {
	return func(ctl *Controller) { ctl.restAfterWarmup = enabled }
}

// WithWriteTimeout bounds each store call made by a command or by recovery.
func WithWriteTimeout(d time.Duration) Option {
	return func(ctl *Controller) {
		if d > 0 {
			ctl.writeTimeout = d
		}
	}
}

type Controller struct {
	store   Store
	handle  Handle
	catalog Catalog

	clock           clock.Clock
	logger          *slog.Logger
	metrics         *metrics.Metrics
	timerOpts       []resttimer.Option
	defaultRest     int
	restAfterWarmup bool
	writeTimeout    time.Duration

	timer    *resttimer.Engine
	commands chan command
	finished chan SessionFinished

	ctx       context.Context
	cancel    context.CancelFunc
	ready     chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once

	// recoveryErr is written before ready is closed.
	recoveryErr error

	viewMu sync.RWMutex
	view   view

	subsMu  sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
	closed  bool

	// owned by the run goroutine
	state         fsm.State
	terminal      error
	session       model.Session
	exercises     []*exerciseState
	pausedTotal   time.Duration
	pauseStart    *time.Time
	finishPending bool
}

// New builds a controller. catalog may be nil. Call Start to run recovery.
func New(store Store, handle Handle, catalog Catalog, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		store:           store,
		handle:          handle,
		catalog:         catalog,
		clock:           clock.System{},
		logger:          slog.Default(),
		defaultRest:     DefaultRestSeconds,
		restAfterWarmup: true,
		writeTimeout:    DefaultWriteTimeout,
		commands:        make(chan command),
		finished:        make(chan SessionFinished, 1),
		ctx:             ctx,
		cancel:          cancel,
		ready:           make(chan struct{}),
		done:            make(chan struct{}),
		subs:            make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.timer = resttimer.New(c.timerOpts...)
	return c
}

// Start launches the command loop and blocks until recovery has finished.
// When recovery ends in the error phase the terminal error is returned; the
// controller keeps answering commands with it until closed.
func (c *Controller) Start(ctx context.Context) error {
	started := false
	c.startOnce.Do(func() {
		started = true
		go c.run()
	})
	if !started {
		select {
		case <-c.done:
			return ErrClosed
		default:
			return ErrAlreadyStarted
		}
	}
	select {
	case <-c.ready:
		return c.recoveryErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop, the rest timer and any write in flight, and closes
// subscriber channels. Idempotent.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.startOnce.Do(func() { close(c.done) })
	})
	<-c.done
	c.timer.Close()

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}

// Finished delivers SessionFinished once per controller.
func (c *Controller) Finished() <-chan SessionFinished {
	return c.finished
}

func (c *Controller) run() {
	defer close(c.done)
	defer c.timer.Close()

	c.recoverSession()
	c.publish()
	close(c.ready)

	updates := c.timer.Updates()
	for {
		select {
		case <-c.ctx.Done():
			return
		case cmd := <-c.commands:
			cmd.reply <- c.handleCommand(cmd)
		case st := <-updates:
			c.broadcast(st)
		}
	}
}

func (c *Controller) dispatch(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case c.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

// write runs fn on its own goroutine under the write timeout and waits for it.
func (c *Controller) write(op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(c.ctx, c.writeTimeout)
	defer cancel()

	begin := time.Now()
	result := make(chan error, 1)
	go func() { result <- fn(ctx) }()

	var err error
	select {
	case err = <-result:
	case <-ctx.Done():
		err = ctx.Err()
	}
	c.metrics.WriteObserved(op, time.Since(begin), err)
	if err != nil {
		c.logger.Warn("durable write failed",
			"op", op,
			"session_id", c.session.ID,
			"error", err,
		)
	}
	return err
}
