package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeError_CodeOfWrapped(t *testing.T) {
	cause := stderrors.New("disk full")
	err := fmt.Errorf("complete set: %w", PersistenceFailure("set completion", cause))

	code, ok := CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, CodePersistenceFailure, code)
	assert.True(t, IsCode(err, CodePersistenceFailure))
	assert.False(t, IsCode(err, CodeTimerMisuse))
	assert.ErrorIs(t, err, cause)
}

func TestRuntimeError_CodeOfPlainError(t *testing.T) {
	_, ok := CodeOf(stderrors.New("plain"))
	assert.False(t, ok)
	assert.False(t, IsCode(nil, CodeSessionNotFound))
}

func TestFromRuntime_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{SessionNotFound("no open session"), http.StatusNotFound, "session_not_found"},
		{InvalidTransition("completed + pause"), http.StatusConflict, "invalid_transition"},
		{PersistenceFailure("session", stderrors.New("locked")), http.StatusServiceUnavailable, "persistence_failure"},
		{TimerMisuse("pause while idle"), http.StatusConflict, "timer_misuse"},
		{InvalidCommand("unknown set"), http.StatusBadRequest, "invalid_command"},
		{stderrors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		apiErr := FromRuntime(tc.err)
		require.NotNil(t, apiErr)
		assert.Equal(t, tc.status, apiErr.Status, tc.err.Error())
		assert.Equal(t, tc.code, apiErr.Code, tc.err.Error())
	}
	assert.Nil(t, FromRuntime(nil))
}
