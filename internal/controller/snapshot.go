package controller

import (
	"time"

	"workout/backend/internal/fsm"
	"workout/backend/internal/model"
	"workout/backend/internal/resttimer"
)

// Snapshot is the observable runtime state. Slices are shared between
// snapshots and must not be modified.
type Snapshot struct {
	SessionID             string          `json:"sessionId,omitempty"`
	AthleteID             string          `json:"athleteId,omitempty"`
	Phase                 fsm.Phase       `json:"phase"`
	ErrorReason           string          `json:"errorReason,omitempty"`
	StartedAt             *time.Time      `json:"startedAt,omitempty"`
	CompletedAt           *time.Time      `json:"completedAt,omitempty"`
	PausedDurationSeconds int64           `json:"pausedDurationSeconds"`
	ElapsedSeconds        int64           `json:"elapsedSeconds"`
	FinishPending         bool            `json:"finishPending"`
	Exercises             []ExerciseView  `json:"exercises"`
	Rest                  resttimer.State `json:"rest"`
}

type ExerciseView struct {
	Instance    model.ExerciseInstance `json:"instance"`
	Name        string                 `json:"name"`
	RestSeconds int                    `json:"restSeconds"`
	Sets        []model.Set            `json:"sets"`
}

// CurrentSet returns the set under the cursor, if any.
func (e ExerciseView) CurrentSet() (model.Set, bool) {
	for _, s := range e.Sets {
		if s.Status == model.SetStatusInProgress {
			return s, true
		}
	}
	return model.Set{}, false
}

// view is the immutable copy of the projection published by the loop.
type view struct {
	state         fsm.State
	session       model.Session
	paused        time.Duration
	pauseStart    *time.Time
	finishPending bool
	exercises     []ExerciseView
}

func (v view) snapshot(now time.Time, rest resttimer.State) Snapshot {
	snap := Snapshot{
		SessionID:             v.session.ID,
		AthleteID:             v.session.AthleteID,
		Phase:                 v.state.Phase,
		ErrorReason:           v.state.Reason,
		CompletedAt:           v.session.CompletedAt,
		PausedDurationSeconds: v.session.PausedDurationSeconds,
		FinishPending:         v.finishPending,
		Exercises:             v.exercises,
		Rest:                  rest,
	}
	if snap.Exercises == nil {
		snap.Exercises = []ExerciseView{}
	}
	if !v.session.StartedAt.IsZero() {
		startedAt := v.session.StartedAt
		snap.StartedAt = &startedAt
	}
	switch v.state.Phase {
	case fsm.Active, fsm.Paused:
		snap.ElapsedSeconds = Elapsed(v.session.StartedAt, v.paused, v.pauseStart, now)
	case fsm.Completed:
		snap.ElapsedSeconds = v.session.DurationSeconds
	}
	return snap
}

// Snapshot returns the current state with elapsed time computed now.
func (c *Controller) Snapshot() Snapshot {
	c.viewMu.RLock()
	v := c.view
	c.viewMu.RUnlock()
	return v.snapshot(c.clock.Now(), c.timer.State())
}

// Subscribe returns a channel of snapshots that always holds the latest one,
// starting with the current state. The channel is closed by unsubscribe or
// by Close.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.subsMu.Lock()
	if c.closed {
		c.subsMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	// Close and unsubscribe close ch under subsMu, so the first send holds it too.
	offer(ch, c.Snapshot())
	c.subsMu.Unlock()

	unsubscribe := func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// publish copies the loop-owned projection into the shared view and
// notifies subscribers.
func (c *Controller) publish() {
	exercises := make([]ExerciseView, len(c.exercises))
	for i, ex := range c.exercises {
		sets := make([]model.Set, len(ex.sets))
		copy(sets, ex.sets)
		exercises[i] = ExerciseView{
			Instance:    ex.instance,
			Name:        ex.name,
			RestSeconds: ex.restSeconds,
			Sets:        sets,
		}
	}
	v := view{
		state:         c.state,
		session:       c.session,
		paused:        c.pausedTotal,
		finishPending: c.finishPending,
		exercises:     exercises,
	}
	if c.pauseStart != nil {
		at := *c.pauseStart
		v.pauseStart = &at
	}

	c.viewMu.Lock()
	c.view = v
	c.viewMu.Unlock()

	c.broadcast(c.timer.State())
}

func (c *Controller) broadcast(rest resttimer.State) {
	c.viewMu.RLock()
	v := c.view
	c.viewMu.RUnlock()
	snap := v.snapshot(c.clock.Now(), rest)

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		offer(ch, snap)
	}
}

// offer replaces whatever snapshot is buffered in ch with snap.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
