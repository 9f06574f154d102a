// Package fsm holds the workout session phase machine. It is a pure function
// of (phase, event): no I/O, no clock, no locking.
package fsm

import (
	"fmt"
	"io"

	apperrors "workout/backend/internal/errors"
)

type Phase string

const (
	Active    Phase = "active"
	Paused    Phase = "paused"
	Completed Phase = "completed"
	Error     Phase = "error"
)

// Phases lists every phase in table order.
var Phases = []Phase{Active, Paused, Completed, Error}

type EventKind string

const (
	EventPause  EventKind = "pause"
	EventResume EventKind = "resume"
	EventFinish EventKind = "finish"
	EventFail   EventKind = "fail"
)

// EventKinds lists every event in table order.
var EventKinds = []EventKind{EventPause, EventResume, EventFinish, EventFail}

// State is a phase plus the failure reason when the phase is Error.
type State struct {
	Phase  Phase  `json:"phase"`
	Reason string `json:"reason,omitempty"`
}

type Event struct {
	Kind   EventKind
	Reason string
}

func Pause() Event  { return Event{Kind: EventPause} }
func Resume() Event { return Event{Kind: EventResume} }
func Finish() Event { return Event{Kind: EventFinish} }

func Fail(reason string) Event {
	return Event{Kind: EventFail, Reason: reason}
}

// Transition is a single allowed edge.
type Transition struct {
	From  Phase
	Event EventKind
	To    Phase
}

var transitionsTable = []Transition{
	{From: Active, Event: EventPause, To: Paused},
	{From: Paused, Event: EventResume, To: Active},
	{From: Active, Event: EventFinish, To: Completed},
	{From: Paused, Event: EventFinish, To: Completed},
	{From: Active, Event: EventFail, To: Error},
	{From: Paused, Event: EventFail, To: Error},
}

// Table returns a copy of the allowed edges.
func Table() []Transition {
	out := make([]Transition, len(transitionsTable))
	copy(out, transitionsTable)
	return out
}

// TransitionFor returns the allowed transition for a phase and event.
func TransitionFor(from Phase, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

// Result is the outcome of applying an event. Ignored is set when the event
// arrived in the terminal Completed phase and was dropped.
type Result struct {
	State   State
	Ignored bool
}

// Apply computes the next state. Completed swallows every event; Error and
// any pair missing from the table yield an INVALID_TRANSITION error and the
// unchanged state.
func Apply(from State, ev Event) (Result, error) {
	if from.Phase == Completed {
		return Result{State: from, Ignored: true}, nil
	}
	tr, ok := TransitionFor(from.Phase, ev.Kind)
	if !ok {
		return Result{State: from}, apperrors.InvalidTransition(fmt.Sprintf("%s + %s is not allowed", from.Phase, ev.Kind))
	}
	next := State{Phase: tr.To}
	if tr.To == Error {
		next.Reason = ev.Reason
	}
	return Result{State: next}, nil
}

// WriteTable renders the outcome of every (phase, event) pair.
func WriteTable(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%-10s %-7s %s\n", "FROM", "EVENT", "RESULT"); err != nil {
		return err
	}
	for _, phase := range Phases {
		for _, kind := range EventKinds {
			outcome := "invalid"
			res, err := Apply(State{Phase: phase}, Event{Kind: kind})
			switch {
			case res.Ignored:
				outcome = "ignored"
			case err == nil:
				outcome = string(res.State.Phase)
			}
			if _, err := fmt.Fprintf(w, "%-10s %-7s %s\n", phase, kind, outcome); err != nil {
				return err
			}
		}
	}
	return nil
}
