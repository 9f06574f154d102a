package controller

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	apperrors "workout/backend/internal/errors"
	"workout/backend/internal/fsm"
	"workout/backend/internal/model"
	"workout/backend/internal/repository"
)

const (
	sourceHandle = "handle"
	sourceScan   = "scan"
	sourceNone   = "none"
)

// recoverSession resolves the open session and loads its projection. It runs once,
// on the loop goroutine, before any command is read.
func (c *Controller) recoverSession() {
	ctx, cancel := context.WithTimeout(c.ctx, c.writeTimeout)
	defer cancel()

	session, source, err := c.resolveSession(ctx)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeSessionNotFound) {
			c.metrics.Recovered(sourceNone)
			c.logger.Info("no open session to recover")
			c.enterError("session not found", err)
			return
		}
		c.logger.Error("recovery failed", "error", err)
		c.enterError(err.Error(), err)
		return
	}

	c.session = *session
	c.pausedTotal = time.Duration(session.PausedDurationSeconds) * time.Second
	c.state = fsm.State{Phase: fsm.Active}
	if session.Phase == model.PhasePaused {
		c.state = fsm.State{Phase: fsm.Paused}
		c.pauseStart = pauseStartOf(*session, c.clock.Now())
	}

	if err := c.handle.Set(ctx, session.ID); err != nil {
		c.logger.Warn("durable handle not updated", "session_id", session.ID, "error", err)
	}

	exercises, err := c.loadExercises(ctx, session.ID)
	if err != nil {
		c.logger.Error("recovery failed", "session_id", session.ID, "error", err)
		res, _ := fsm.Apply(c.state, fsm.Fail(err.Error()))
		c.state = res.State
		c.terminal = apperrors.InvalidTransition("session runtime failed: " + err.Error())
		c.recoveryErr = c.terminal
		return
	}
	c.exercises = exercises

	c.metrics.Recovered(source)
	c.logger.Info("session recovered",
		"session_id", session.ID,
		"source", source,
		"phase", c.state.Phase,
		"exercises", len(exercises),
	)
}

// enterError is used before a session is resolved, when there is no phase to
// fail from.
func (c *Controller) enterError(reason string, err error) {
	c.state = fsm.State{Phase: fsm.Error, Reason: reason}
	if !apperrors.IsCode(err, apperrors.CodeSessionNotFound) {
		err = apperrors.InvalidTransition("session runtime failed: " + reason)
	}
	c.terminal = err
	c.recoveryErr = err
}

func (c *Controller) resolveSession(ctx context.Context) (*model.Session, string, error) {
	id, ok, err := c.handle.Get(ctx)
	if err != nil {
		c.logger.Warn("durable handle unreadable, scanning store", "error", err)
		ok = false
	}

	if ok {
		session, err := c.store.GetSession(ctx, id)
		switch {
		case err == nil && session.Phase.Open():
			return session, sourceHandle, nil
		case err == nil || errors.Is(err, repository.ErrNotFound):
			c.logger.Warn("durable handle is stale", "session_id", id)
			if clearErr := c.handle.Clear(ctx); clearErr != nil {
				c.logger.Warn("durable handle not cleared", "session_id", id, "error", clearErr)
			}
		default:
			return nil, "", fmt.Errorf("load session %s: %w", id, err)
		}
	}

	session, err := c.store.GetActiveOrPausedSession(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", apperrors.SessionNotFound("no active or paused session")
	}
	if err != nil {
		return nil, "", fmt.Errorf("find open session: %w", err)
	}
	return session, sourceScan, nil
}

func (c *Controller) loadExercises(ctx context.Context, sessionID string) ([]*exerciseState, error) {
	// cancelling the watch context releases the streams once the first emission is read
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	instCh, err := c.store.WatchExerciseInstances(watchCtx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("watch exercise instances: %w", err)
	}
	instances, err := firstEmission(watchCtx, instCh)
	if err != nil {
		return nil, fmt.Errorf("load exercise instances: %w", err)
	}
	slices.SortStableFunc(instances, func(a, b model.ExerciseInstance) int {
		return a.OrderIndex - b.OrderIndex
	})

	out := make([]*exerciseState, 0, len(instances))
	for _, inst := range instances {
		setCh, err := c.store.WatchSets(watchCtx, inst.ID)
		if err != nil {
			return nil, fmt.Errorf("watch sets of %s: %w", inst.ID, err)
		}
		sets, err := firstEmission(watchCtx, setCh)
		if err != nil {
			return nil, fmt.Errorf("load sets of %s: %w", inst.ID, err)
		}
		slices.SortStableFunc(sets, func(a, b model.Set) int {
			return a.SetNumber - b.SetNumber
		})

		name, rest := c.describe(inst)
		out = append(out, &exerciseState{
			instance:    inst,
			name:        name,
			restSeconds: rest,
			sets:        ProjectCursor(sets),
		})
	}
	return out, nil
}

// describe resolves the display name and rest seconds: the instance override,
// then the catalog default, then the configured default.
func (c *Controller) describe(inst model.ExerciseInstance) (string, int) {
	name := inst.ExerciseID
	rest := c.defaultRest
	if c.catalog != nil {
		if ex, ok := c.catalog.Lookup(inst.ExerciseID); ok {
			name = ex.Name
			if ex.RestSeconds > 0 {
				rest = ex.RestSeconds
			}
		}
	}
	if inst.RestSeconds != nil && *inst.RestSeconds > 0 {
		rest = *inst.RestSeconds
	}
	return name, rest
}

// pauseStartOf rebuilds the pause instant of a session recovered as paused.
// The pause write stamps UpdatedAt with that instant and set writes leave the
// session row alone. An unusable stamp falls back to now.
func pauseStartOf(session model.Session, now time.Time) *time.Time {
	at := session.UpdatedAt
	if at.IsZero() || at.After(now) || at.Before(session.StartedAt) {
		at = now
	}
	return &at
}

func firstEmission[T any](ctx context.Context, ch <-chan model.Update[T]) ([]T, error) {
	select {
	case u, ok := <-ch:
		if !ok {
			return nil, errors.New("stream closed before first emission")
		}
		if u.Err != nil {
			return nil, u.Err
		}
		return u.Items, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
