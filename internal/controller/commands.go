package controller

import (
	"context"
	"fmt"

	apperrors "workout/backend/internal/errors"
	"workout/backend/internal/fsm"
	"workout/backend/internal/model"
)

type commandKind int

const (
	cmdPause commandKind = iota + 1
	cmdResume
	cmdCompleteSet
	cmdSkipSet
	cmdRequestFinish
	cmdCancelFinish
	cmdConfirmFinish
	cmdExtendRest
	cmdSkipRest
)

func (k commandKind) String() string {
	switch k {
	case cmdPause:
		return "pause"
	case cmdResume:
		return "resume"
	case cmdCompleteSet:
		return "complete_set"
	case cmdSkipSet:
		return "skip_set"
	case cmdRequestFinish:
		return "request_finish"
	case cmdCancelFinish:
		return "cancel_finish"
	case cmdConfirmFinish:
		return "confirm_finish"
	case cmdExtendRest:
		return "extend_rest"
	case cmdSkipRest:
		return "skip_rest"
	default:
		return "unknown"
	}
}

type command struct {
	kind     commandKind
	complete CompleteSetInput
	skip     SkipSetInput
	delta    int
	reply    chan error
}

// CompleteSetInput identifies a set and the performed weight and reps.
// SetID is optional; when present it must match the set at SetNumber.
type CompleteSetInput struct {
	ExerciseInstanceID string  `json:"exerciseInstanceId"`
	SetID              string  `json:"setId,omitempty"`
	SetNumber          int     `json:"setNumber"`
	Weight             float64 `json:"weight"`
	Reps               int     `json:"reps"`
}

type SkipSetInput struct {
	ExerciseInstanceID string `json:"exerciseInstanceId"`
	SetNumber          int    `json:"setNumber"`
}

func (c *Controller) Pause(ctx context.Context) error {
	return c.dispatch(ctx, command{kind: cmdPause})
}

func (c *Controller) Resume(ctx context.Context) error {
	return c.dispatch(ctx, command{kind: cmdResume})
}

// CompleteSet records a performed set. Sending the same completion twice
// leaves one persisted completion and starts no second rest timer.
func (c *Controller) CompleteSet(ctx context.Context, in CompleteSetInput) error {
	return c.dispatch(ctx, command{kind: cmdCompleteSet, complete: in})
}

func (c *Controller) SkipSet(ctx context.Context, in SkipSetInput) error {
	return c.dispatch(ctx, command{kind: cmdSkipSet, skip: in})
}

// RequestFinish marks a finish as awaiting confirmation. Nothing is persisted.
func (c *Controller) RequestFinish(ctx context.Context) error {
	return c.dispatch(ctx, command{kind: cmdRequestFinish})
}

func (c *Controller) CancelFinish(ctx context.Context) error {
	return c.dispatch(ctx, command{kind: cmdCancelFinish})
}

// ConfirmFinish completes the session after RequestFinish.
func (c *Controller) ConfirmFinish(ctx context.Context) error {
	return c.dispatch(ctx, command{kind: cmdConfirmFinish})
}

// ExtendRest adds delta seconds to the rest timer; negative values shorten it.
func (c *Controller) ExtendRest(ctx context.Context, delta int) error {
	return c.dispatch(ctx, command{kind: cmdExtendRest, delta: delta})
}

func (c *Controller) SkipRest(ctx context.Context) error {
	return c.dispatch(ctx, command{kind: cmdSkipRest})
}

func (c *Controller) handleCommand(cmd command) error {
	err := c.apply(cmd)

	outcome := "ok"
	if code, ok := apperrors.CodeOf(err); ok {
		outcome = string(code)
	} else if err != nil {
		outcome = "error"
	}
	c.metrics.CommandHandled(cmd.kind.String(), outcome)

	if err != nil {
		level := c.logger.Info
		if apperrors.IsCode(err, apperrors.CodeTimerMisuse) {
			level = c.logger.Debug
		}
		level("command rejected",
			"command", cmd.kind.String(),
			"session_id", c.session.ID,
			"phase", c.state.Phase,
			"error", err,
		)
		return err
	}

	c.publish()
	return nil
}

func (c *Controller) apply(cmd command) error {
	if c.state.Phase == fsm.Error {
		return c.terminal
	}
	switch cmd.kind {
	case cmdPause:
		return c.pause()
	case cmdResume:
		return c.resume()
	case cmdCompleteSet:
		return c.completeSet(cmd.complete)
	case cmdSkipSet:
		return c.skipSet(cmd.skip)
	case cmdRequestFinish:
		return c.setFinishPending(true)
	case cmdCancelFinish:
		return c.setFinishPending(false)
	case cmdConfirmFinish:
		return c.confirmFinish()
	case cmdExtendRest:
		if cmd.delta == 0 {
			return apperrors.InvalidCommand("rest delta must not be zero")
		}
		return c.timer.Extend(cmd.delta)
	case cmdSkipRest:
		c.timer.Skip()
		return nil
	default:
		return apperrors.InvalidCommand(fmt.Sprintf("unknown command %d", cmd.kind))
	}
}

// step runs the phase machine. ok is false when the event was dropped
// because the session is already completed.
func (c *Controller) step(ev fsm.Event) (fsm.State, bool, error) {
	res, err := fsm.Apply(c.state, ev)
	if err != nil {
		return c.state, false, err
	}
	if res.Ignored {
		c.logger.Info("event ignored, session completed",
			"event", ev.Kind,
			"session_id", c.session.ID,
		)
		return c.state, false, nil
	}
	return res.State, true, nil
}

func (c *Controller) pause() error {
	next, ok, err := c.step(fsm.Pause())
	if err != nil || !ok {
		return err
	}

	now := c.clock.Now()
	updated := c.session
	updated.Phase = model.PhasePaused
	updated.UpdatedAt = now
	if err := c.write("pause session", func(ctx context.Context) error {
		return c.store.UpdateSession(ctx, updated)
	}); err != nil {
		return apperrors.PersistenceFailure("pause session", err)
	}

	c.session = updated
	c.state = next
	c.pauseStart = &now
	c.timerCall("pause", c.timer.Pause())
	return nil
}

func (c *Controller) resume() error {
	next, ok, err := c.step(fsm.Resume())
	if err != nil || !ok {
		return err
	}

	now := c.clock.Now()
	updated := c.session
	updated.Phase = model.PhaseActive
	paused := foldPause(c.pausedTotal, c.pauseStart, now)
	updated.PausedDurationSeconds = wholeSeconds(paused)
	updated.UpdatedAt = now
	if err := c.write("resume session", func(ctx context.Context) error {
		return c.store.UpdateSession(ctx, updated)
	}); err != nil {
		return apperrors.PersistenceFailure("resume session", err)
	}

	c.session = updated
	c.state = next
	c.pausedTotal = paused
	c.pauseStart = nil
	c.timerCall("resume", c.timer.Resume())
	return nil
}

// requireOpen rejects set mutations once the session is completed.
func (c *Controller) requireOpen() error {
	if c.state.Phase == fsm.Completed {
		return apperrors.InvalidTransition("session is completed")
	}
	return nil
}

func (c *Controller) findExercise(id string) (*exerciseState, error) {
	for _, ex := range c.exercises {
		if ex.instance.ID == id {
			return ex, nil
		}
	}
	return nil, apperrors.InvalidCommand("unknown exercise instance " + id)
}

func (c *Controller) completeSet(in CompleteSetInput) error {
	if err := c.requireOpen(); err != nil {
		return err
	}
	if in.Weight < 0 || in.Reps < 0 {
		return apperrors.InvalidCommand("weight and reps must not be negative")
	}
	ex, err := c.findExercise(in.ExerciseInstanceID)
	if err != nil {
		return err
	}
	idx := ex.setIndex(in.SetNumber)
	if idx < 0 {
		return apperrors.InvalidCommand(fmt.Sprintf("exercise instance %s has no set %d", in.ExerciseInstanceID, in.SetNumber))
	}
	set := ex.sets[idx]
	if in.SetID != "" && in.SetID != set.ID {
		return apperrors.InvalidCommand(fmt.Sprintf("set %d is %s, not %s", in.SetNumber, set.ID, in.SetID))
	}

	wasCompleted := set.Status == model.SetStatusCompleted
	completedAt := c.clock.Now()
	if wasCompleted && set.CompletedAt != nil {
		completedAt = *set.CompletedAt
	}

	completion := model.SetCompletion{
		ExerciseInstanceID: in.ExerciseInstanceID,
		SetNumber:          in.SetNumber,
		Weight:             in.Weight,
		Reps:               in.Reps,
		CompletedAt:        completedAt,
	}
	if err := c.write("complete set", func(ctx context.Context) error {
		return c.store.UpsertSetCompletion(ctx, completion)
	}); err != nil {
		return apperrors.PersistenceFailure("complete set", err)
	}

	weight, reps := in.Weight, in.Reps
	set.Status = model.SetStatusCompleted
	set.ActualWeight = &weight
	set.ActualReps = &reps
	set.CompletedAt = &completedAt
	sets := make([]model.Set, len(ex.sets))
	copy(sets, ex.sets)
	sets[idx] = set
	ex.sets = ProjectCursor(sets)

	if wasCompleted || !hasOpenSet(ex.sets) {
		return nil
	}
	if set.Kind == model.SetKindWarmup && !c.restAfterWarmup {
		return nil
	}
	c.startRest(ex.restSeconds)
	return nil
}

func (c *Controller) skipSet(in SkipSetInput) error {
	if err := c.requireOpen(); err != nil {
		return err
	}
	ex, err := c.findExercise(in.ExerciseInstanceID)
	if err != nil {
		return err
	}
	idx := ex.setIndex(in.SetNumber)
	if idx < 0 {
		return apperrors.InvalidCommand(fmt.Sprintf("exercise instance %s has no set %d", in.ExerciseInstanceID, in.SetNumber))
	}
	switch ex.sets[idx].Status {
	case model.SetStatusSkipped:
		return nil
	case model.SetStatusCompleted:
		return apperrors.InvalidCommand(fmt.Sprintf("set %d is already completed", in.SetNumber))
	}

	if err := c.write("skip set", func(ctx context.Context) error {
		return c.store.MarkSetSkipped(ctx, in.ExerciseInstanceID, in.SetNumber)
	}); err != nil {
		return apperrors.PersistenceFailure("skip set", err)
	}

	sets := make([]model.Set, len(ex.sets))
	copy(sets, ex.sets)
	sets[idx].Status = model.SetStatusSkipped
	ex.sets = ProjectCursor(sets)
	return nil
}

func (c *Controller) setFinishPending(pending bool) error {
	if c.state.Phase == fsm.Completed {
		c.logger.Info("finish request ignored, session completed", "session_id", c.session.ID)
		return nil
	}
	c.finishPending = pending
	return nil
}

func (c *Controller) confirmFinish() error {
	if c.state.Phase != fsm.Completed && !c.finishPending {
		return apperrors.InvalidCommand("finish has not been requested")
	}
	next, ok, err := c.step(fsm.Finish())
	if err != nil || !ok {
		return err
	}

	now := c.clock.Now()
	updated := c.session
	paused := foldPause(c.pausedTotal, c.pauseStart, now)
	updated.PausedDurationSeconds = wholeSeconds(paused)
	updated.DurationSeconds = Elapsed(updated.StartedAt, paused, nil, now)
	updated.Phase = model.PhaseCompleted
	updated.CompletedAt = &now
	updated.UpdatedAt = now
	if err := c.write("finish session", func(ctx context.Context) error {
		return c.store.UpdateSession(ctx, updated)
	}); err != nil {
		return apperrors.PersistenceFailure("finish session", err)
	}

	c.session = updated
	c.state = next
	c.pausedTotal = paused
	c.pauseStart = nil
	c.finishPending = false
	c.timer.Cancel()

	// a handle left behind is treated as stale by the next recovery
	_ = c.write("clear handle", c.handle.Clear)

	c.metrics.SessionFinished()
	c.logger.Info("session finished",
		"session_id", updated.ID,
		"duration_seconds", updated.DurationSeconds,
		"paused_seconds", updated.PausedDurationSeconds,
	)
	select {
	case c.finished <- SessionFinished{SessionID: updated.ID}:
	default:
	}
	return nil
}

func (c *Controller) startRest(seconds int) {
	if err := c.timer.Start(seconds); err != nil {
		c.timerCall("start", err)
		return
	}
	c.metrics.RestStarted()
	if c.state.Phase == fsm.Paused {
		c.timerCall("pause", c.timer.Pause())
	}
}

// timerCall logs rest timer misuse; it never fails a session command.
func (c *Controller) timerCall(op string, err error) {
	if err != nil {
		c.logger.Debug("rest timer call had no effect", "op", op, "error", err)
	}
}
