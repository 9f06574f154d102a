package fsm

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "workout/backend/internal/errors"
)

func TestApply_AllowedTransitions(t *testing.T) {
	cases := []struct {
		from Phase
		ev   Event
		to   Phase
	}{
		{Active, Pause(), Paused},
		{Paused, Resume(), Active},
		{Active, Finish(), Completed},
		{Paused, Finish(), Completed},
	}
	for _, tc := range cases {
		res, err := Apply(State{Phase: tc.from}, tc.ev)
		require.NoError(t, err, "%s + %s", tc.from, tc.ev.Kind)
		assert.Equal(t, tc.to, res.State.Phase)
		assert.False(t, res.Ignored)
	}
}

func TestApply_FailCarriesReason(t *testing.T) {
	for _, from := range []Phase{Active, Paused} {
		res, err := Apply(State{Phase: from}, Fail("store unreachable"))
		require.NoError(t, err)
		assert.Equal(t, State{Phase: Error, Reason: "store unreachable"}, res.State)
	}
}

func TestApply_ErrorIsTerminal(t *testing.T) {
	from := State{Phase: Error, Reason: "session not found"}
	for _, kind := range EventKinds {
		res, err := Apply(from, Event{Kind: kind})
		require.Error(t, err, kind)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidTransition))
		assert.Equal(t, from, res.State, "state must not change")
	}
}

func TestApply_CompletedIgnoresEverything(t *testing.T) {
	from := State{Phase: Completed}
	for _, kind := range EventKinds {
		res, err := Apply(from, Event{Kind: kind, Reason: "late"})
		require.NoError(t, err, kind)
		assert.True(t, res.Ignored)
		assert.Equal(t, from, res.State)
	}
}

func TestApply_RejectsUnknownPairs(t *testing.T) {
	cases := []struct {
		from Phase
		ev   Event
	}{
		{Active, Resume()},
		{Paused, Pause()},
		{Active, Event{Kind: "rewind"}},
	}
	for _, tc := range cases {
		res, err := Apply(State{Phase: tc.from}, tc.ev)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidTransition))
		assert.Equal(t, tc.from, res.State.Phase)
	}
}

func TestTable_IsACopy(t *testing.T) {
	table := Table()
	require.NotEmpty(t, table)
	table[0].To = Error

	tr, ok := TransitionFor(Active, EventPause)
	require.True(t, ok)
	assert.Equal(t, Paused, tr.To)
}

func TestWriteTable_Golden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf))

	g := goldie.New(t)
	g.Assert(t, "transitions", buf.Bytes())
}
