package controller

import (
	"time"

	"workout/backend/internal/model"
)

// Elapsed returns whole seconds of active time: floor(at - startedAt - paused),
// where at is pauseStart while paused and now otherwise. It never goes below
// zero.
func Elapsed(startedAt time.Time, paused time.Duration, pauseStart *time.Time, now time.Time) int64 {
	at := now
	if pauseStart != nil {
		at = *pauseStart
	}
	secs := int64((at.Sub(startedAt) - paused) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// foldPause adds the open paused interval, if any, to total. Totals keep full
// precision; only the persisted field is truncated to whole seconds.
func foldPause(total time.Duration, pauseStart *time.Time, now time.Time) time.Duration {
	if pauseStart == nil {
		return total
	}
	if d := now.Sub(*pauseStart); d > 0 {
		total += d
	}
	return total
}

func wholeSeconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

// ProjectCursor returns a copy of sets (ordered by set number) in which the
// first set that is neither completed nor skipped is in_progress and every
// other open set is planned.
func ProjectCursor(sets []model.Set) []model.Set {
	out := make([]model.Set, len(sets))
	copy(out, sets)
	found := false
	for i := range out {
		if out[i].Status.Terminal() {
			continue
		}
		if !found {
			out[i].Status = model.SetStatusInProgress
			found = true
			continue
		}
		out[i].Status = model.SetStatusPlanned
	}
	return out
}

func hasOpenSet(sets []model.Set) bool {
	for _, s := range sets {
		if !s.Status.Terminal() {
			return true
		}
	}
	return false
}

// exerciseState is the loop-owned projection of one exercise instance.
type exerciseState struct {
	instance    model.ExerciseInstance
	name        string
	restSeconds int
	sets        []model.Set
}

func (e *exerciseState) setIndex(setNumber int) int {
	for i, s := range e.sets {
		if s.SetNumber == setNumber {
			return i
		}
	}
	return -1
}
