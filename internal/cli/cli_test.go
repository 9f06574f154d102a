package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workout/backend/internal/controller"
	"workout/backend/internal/db"
	"workout/backend/internal/fsm"
	"workout/backend/internal/model"
	"workout/backend/internal/repository"
)

type store struct {
	args []string
}

func migrationsDir() string {
	_, currentFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
}

// newStore creates a database holding one open session and returns the
// global flags that point workoutctl at it.
func newStore(t *testing.T, withSession bool) store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "workout.db")

	database, err := db.OpenSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(database, migrationsDir()))
	if withSession {
		_, err = repository.NewWorkoutRepository(database).CreateSession(context.Background(), model.SessionPlan{
			Exercises: []model.PlannedExercise{{
				ExerciseID: "deadlift",
				Sets: []model.PlannedSet{
					{Weight: 140, Reps: 5},
					{Weight: 140, Reps: 5},
				},
			}},
		}, time.Now().Add(-10*time.Minute))
		require.NoError(t, err)
	}
	require.NoError(t, database.Close())

	return store{args: []string{
		"--db", dbPath,
		"--migrations", migrationsDir(),
		"--handle", filepath.Join(dir, "active-session.json"),
	}}
}

func (s store) run(args ...string) (string, string, error) {
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args, s.args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (s store) status(t *testing.T) controller.Snapshot {
	t.Helper()
	out, _, err := s.run("status", "--format", "json")
	require.NoError(t, err)
	var snap controller.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	return snap
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "workoutctl", cmd.Use)

	for _, name := range []string{"status", "pause", "resume", "complete", "skip", "finish", "transitions"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestRootCommand_RejectsUnknownFormat(t *testing.T) {
	_, _, err := newStore(t, false).run("status", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitCode(err))
}

func TestStatus_WithoutSession(t *testing.T) {
	out, _, err := newStore(t, false).run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "phase:")
	assert.Contains(t, out, "session not found")
}

func TestComplete_UsesCurrentSet(t *testing.T) {
	s := newStore(t, true)

	out, _, err := s.run("complete", "--weight", "142.5", "--reps", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Deadlift")
	assert.Contains(t, out, "142.5 x 5")

	snap := s.status(t)
	assert.Equal(t, fsm.Active, snap.Phase)
	require.Len(t, snap.Exercises, 1)
	sets := snap.Exercises[0].Sets
	assert.Equal(t, model.SetStatusCompleted, sets[0].Status)
	assert.Equal(t, model.SetStatusInProgress, sets[1].Status)
}

func TestSkip_ByExerciseAndSet(t *testing.T) {
	s := newStore(t, true)

	_, _, err := s.run("skip", "--exercise", "deadlift", "--set", "2")
	require.NoError(t, err)

	sets := s.status(t).Exercises[0].Sets
	assert.Equal(t, model.SetStatusInProgress, sets[0].Status)
	assert.Equal(t, model.SetStatusSkipped, sets[1].Status)

	_, _, err = s.run("skip", "--exercise", "bench-press")
	require.Error(t, err)
	assert.Equal(t, ExitRejected, ExitCode(err))
}

func TestPauseResumeFinish(t *testing.T) {
	s := newStore(t, true)

	_, _, err := s.run("pause")
	require.NoError(t, err)
	assert.Equal(t, fsm.Paused, s.status(t).Phase)

	_, _, err = s.run("pause")
	require.Error(t, err)
	assert.Equal(t, ExitRejected, ExitCode(err))

	_, _, err = s.run("resume")
	require.NoError(t, err)

	_, _, err = s.run("finish")
	require.NoError(t, err)

	snap := s.status(t)
	assert.Equal(t, fsm.Error, snap.Phase, "a finished session is no longer open")
	assert.Equal(t, "session not found", snap.ErrorReason)
}

func TestTransitions(t *testing.T) {
	out, _, err := newStore(t, false).run("transitions")
	require.NoError(t, err)

	var want bytes.Buffer
	require.NoError(t, fsm.WriteTable(&want))
	assert.Equal(t, want.String(), out)
}
