package repository_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workout/backend/internal/db"
	"workout/backend/internal/model"
	"workout/backend/internal/repository"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = database.Close()
	})

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	require.NoError(t, db.RunMigrations(database, migrationsDir))
	return database
}

func squatPlan() model.SessionPlan {
	rest := 150
	return model.SessionPlan{Exercises: []model.PlannedExercise{
		{
			ExerciseID: "back-squat",
			Sets: []model.PlannedSet{
				{Kind: model.SetKindWarmup, Weight: 60, Reps: 5},
				{Weight: 100, Reps: 5},
				{Weight: 100, Reps: 5},
			},
		},
		{
			ExerciseID:  "bench-press",
			RestSeconds: &rest,
			Sets:        []model.PlannedSet{{Weight: 80, Reps: 8}},
		},
	}}
}

func TestWorkoutRepository_CreateSessionWritesPlan(t *testing.T) {
	repo := repository.NewWorkoutRepository(openTestDB(t))
	ctx := context.Background()

	session, err := repo.CreateSession(ctx, squatPlan(), t0)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseActive, session.Phase)
	assert.True(t, session.StartedAt.Equal(t0))

	instances, err := repo.ListExerciseInstances(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, "back-squat", instances[0].ExerciseID)
	assert.Nil(t, instances[0].RestSeconds)
	require.NotNil(t, instances[1].RestSeconds)
	assert.Equal(t, 150, *instances[1].RestSeconds)

	sets, err := repo.ListSets(ctx, instances[0].ID)
	require.NoError(t, err)
	require.Len(t, sets, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{sets[0].SetNumber, sets[1].SetNumber, sets[2].SetNumber})
	assert.Equal(t, model.SetKindWarmup, sets[0].Kind)
	assert.Equal(t, model.SetKindWorking, sets[1].Kind)
	for _, set := range sets {
		assert.Equal(t, model.SetStatusPlanned, set.Status)
		assert.Nil(t, set.CompletedAt)
	}
}

func TestWorkoutRepository_SingleOpenSession(t *testing.T) {
	repo := repository.NewWorkoutRepository(openTestDB(t))
	ctx := context.Background()

	first, err := repo.CreateSession(ctx, squatPlan(), t0)
	require.NoError(t, err)

	_, err = repo.CreateSession(ctx, squatPlan(), t0.Add(time.Minute))
	assert.ErrorIs(t, err, repository.ErrSessionOpen)

	first.Phase = model.PhasePaused
	first.UpdatedAt = t0.Add(2 * time.Minute)
	require.NoError(t, repo.UpdateSession(ctx, *first))
	_, err = repo.CreateSession(ctx, squatPlan(), t0.Add(3*time.Minute))
	assert.ErrorIs(t, err, repository.ErrSessionOpen)

	done := t0.Add(time.Hour)
	first.Phase = model.PhaseCompleted
	first.CompletedAt = &done
	first.DurationSeconds = 3600
	first.UpdatedAt = done
	require.NoError(t, repo.UpdateSession(ctx, *first))

	second, err := repo.CreateSession(ctx, squatPlan(), done.Add(time.Minute))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	open, err := repo.GetActiveOrPausedSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, open.ID)
}

func TestWorkoutRepository_UpdateSessionKeepsStamp(t *testing.T) {
	repo := repository.NewWorkoutRepository(openTestDB(t))
	ctx := context.Background()

	session, err := repo.CreateSession(ctx, squatPlan(), t0)
	require.NoError(t, err)

	pausedAt := t0.Add(95*time.Second + 250*time.Millisecond)
	session.Phase = model.PhasePaused
	session.PausedDurationSeconds = 12
	session.UpdatedAt = pausedAt
	require.NoError(t, repo.UpdateSession(ctx, *session))

	got, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PhasePaused, got.Phase)
	assert.Equal(t, int64(12), got.PausedDurationSeconds)
	assert.True(t, got.UpdatedAt.Equal(pausedAt))
	assert.Nil(t, got.CompletedAt)
}

func TestWorkoutRepository_NotFound(t *testing.T) {
	repo := repository.NewWorkoutRepository(openTestDB(t))
	ctx := context.Background()

	_, err := repo.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetActiveOrPausedSession(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = repo.UpdateSession(ctx, model.Session{ID: "missing", Phase: model.PhaseCompleted, UpdatedAt: t0})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWorkoutRepository_UpsertSetCompletionIsIdempotent(t *testing.T) {
	repo := repository.NewWorkoutRepository(openTestDB(t))
	ctx := context.Background()

	session, err := repo.CreateSession(ctx, squatPlan(), t0)
	require.NoError(t, err)
	instances, err := repo.ListExerciseInstances(ctx, session.ID)
	require.NoError(t, err)
	instanceID := instances[0].ID

	first := t0.Add(2 * time.Minute)
	require.NoError(t, repo.UpsertSetCompletion(ctx, model.SetCompletion{
		ExerciseInstanceID: instanceID, SetNumber: 2, Weight: 100, Reps: 5, CompletedAt: first,
	}))
	require.NoError(t, repo.UpsertSetCompletion(ctx, model.SetCompletion{
		ExerciseInstanceID: instanceID, SetNumber: 2, Weight: 102.5, Reps: 4, CompletedAt: first.Add(time.Minute),
	}))

	sets, err := repo.ListSets(ctx, instanceID)
	require.NoError(t, err)
	require.Len(t, sets, 3)
	set := sets[1]
	assert.Equal(t, model.SetStatusCompleted, set.Status)
	require.NotNil(t, set.ActualWeight)
	assert.Equal(t, 102.5, *set.ActualWeight)
	require.NotNil(t, set.ActualReps)
	assert.Equal(t, 4, *set.ActualReps)
	require.NotNil(t, set.CompletedAt)
	assert.True(t, set.CompletedAt.Equal(first))
	assert.Equal(t, model.SetKindWorking, set.Kind)
	assert.Equal(t, float64(100), set.PlannedWeight)
}

func TestWorkoutRepository_MarkSetSkipped(t *testing.T) {
	repo := repository.NewWorkoutRepository(openTestDB(t))
	ctx := context.Background()

	session, err := repo.CreateSession(ctx, squatPlan(), t0)
	require.NoError(t, err)
	instances, err := repo.ListExerciseInstances(ctx, session.ID)
	require.NoError(t, err)
	instanceID := instances[0].ID

	require.NoError(t, repo.MarkSetSkipped(ctx, instanceID, 1))
	require.NoError(t, repo.UpsertSetCompletion(ctx, model.SetCompletion{
		ExerciseInstanceID: instanceID, SetNumber: 2, Weight: 100, Reps: 5, CompletedAt: t0,
	}))
	assert.ErrorIs(t, repo.MarkSetSkipped(ctx, instanceID, 2), repository.ErrNotFound)
	assert.ErrorIs(t, repo.MarkSetSkipped(ctx, instanceID, 9), repository.ErrNotFound)

	sets, err := repo.ListSets(ctx, instanceID)
	require.NoError(t, err)
	assert.Equal(t, model.SetStatusSkipped, sets[0].Status)
	assert.Equal(t, model.SetStatusCompleted, sets[1].Status)
	assert.Equal(t, model.SetStatusPlanned, sets[2].Status)
}

func TestWorkoutRepository_WatchSetsEmitsAfterWrites(t *testing.T) {
	repo := repository.NewWorkoutRepository(openTestDB(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := repo.CreateSession(ctx, squatPlan(), t0)
	require.NoError(t, err)
	instances, err := repo.ListExerciseInstances(ctx, session.ID)
	require.NoError(t, err)
	instanceID := instances[0].ID

	updates, err := repo.WatchSets(ctx, instanceID)
	require.NoError(t, err)

	initial := receive(t, updates)
	require.NoError(t, initial.Err)
	require.Len(t, initial.Items, 3)
	assert.Equal(t, model.SetStatusPlanned, initial.Items[0].Status)

	require.NoError(t, repo.UpsertSetCompletion(ctx, model.SetCompletion{
		ExerciseInstanceID: instanceID, SetNumber: 1, Weight: 60, Reps: 5, CompletedAt: t0,
	}))
	next := receive(t, updates)
	require.NoError(t, next.Err)
	assert.Equal(t, model.SetStatusCompleted, next.Items[0].Status)

	cancel()
	select {
	case _, ok := <-updates:
		if ok {
			// a signal raced the cancel; the stream must still close afterwards
			_, ok = <-updates
		}
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("watch did not close after cancel")
	}
}

func TestWorkoutRepository_WatchInstancesSeesNewSession(t *testing.T) {
	repo := repository.NewWorkoutRepository(openTestDB(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := repo.CreateSession(ctx, squatPlan(), t0)
	require.NoError(t, err)

	updates, err := repo.WatchExerciseInstances(ctx, session.ID)
	require.NoError(t, err)
	got := receive(t, updates)
	require.NoError(t, got.Err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, 0, got.Items[0].OrderIndex)
	assert.Equal(t, 1, got.Items[1].OrderIndex)
}

func TestWorkoutRepository_ListCompletedSessionsNewestFirst(t *testing.T) {
	repo := repository.NewWorkoutRepository(openTestDB(t))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		start := t0.Add(time.Duration(i) * 24 * time.Hour)
		session, err := repo.CreateSession(ctx, squatPlan(), start)
		require.NoError(t, err)

		done := start.Add(45 * time.Minute)
		session.Phase = model.PhaseCompleted
		session.CompletedAt = &done
		session.DurationSeconds = 2700
		session.UpdatedAt = done
		require.NoError(t, repo.UpdateSession(ctx, *session))
		ids = append(ids, session.ID)
	}

	sessions, err := repo.ListCompletedSessions(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, ids[2], sessions[0].ID)
	assert.Equal(t, ids[1], sessions[1].ID)
	assert.Equal(t, int64(2700), sessions[0].DurationSeconds)
}

func createAthlete(t *testing.T, database *sql.DB, id string) {
	t.Helper()
	require.NoError(t, repository.NewUserRepository(database).Create(context.Background(), &model.User{
		ID:           id,
		Email:        id + "@example.com",
		DisplayName:  id,
		PasswordHash: "x",
		CreatedAt:    t0,
		UpdatedAt:    t0,
	}))
}

// finishSession completes every open set of session at 100 x 5 and closes it.
func finishSession(t *testing.T, repo *repository.WorkoutRepository, session *model.Session, done time.Time) {
	t.Helper()
	ctx := context.Background()
	instances, err := repo.ListExerciseInstances(ctx, session.ID)
	require.NoError(t, err)
	for _, inst := range instances {
		sets, err := repo.ListSets(ctx, inst.ID)
		require.NoError(t, err)
		for _, set := range sets {
			require.NoError(t, repo.UpsertSetCompletion(ctx, model.SetCompletion{
				ExerciseInstanceID: inst.ID,
				SetNumber:          set.SetNumber,
				Weight:             100,
				Reps:               5,
				CompletedAt:        done,
			}))
		}
	}
	session.Phase = model.PhaseCompleted
	session.CompletedAt = &done
	session.DurationSeconds = int64(done.Sub(session.StartedAt) / time.Second)
	session.PausedDurationSeconds = 30
	session.UpdatedAt = done
	require.NoError(t, repo.UpdateSession(ctx, *session))
}

func TestWorkoutRepository_SessionsScopedToAthlete(t *testing.T) {
	database := openTestDB(t)
	repo := repository.NewWorkoutRepository(database)
	ctx := context.Background()
	createAthlete(t, database, "ana")
	createAthlete(t, database, "ben")

	var anaIDs []string
	for i, athlete := range []string{"ana", "ben", "ana"} {
		plan := squatPlan()
		plan.AthleteID = athlete
		start := t0.Add(time.Duration(i) * time.Hour)
		session, err := repo.CreateSession(ctx, plan, start)
		require.NoError(t, err)
		assert.Equal(t, athlete, session.AthleteID)

		stored, err := repo.GetSession(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, athlete, stored.AthleteID)

		finishSession(t, repo, session, start.Add(10*time.Minute))
		if athlete == "ana" {
			anaIDs = append(anaIDs, session.ID)
		}
	}

	sessions, err := repo.ListCompletedSessions(ctx, "ana", 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, anaIDs[1], sessions[0].ID)
	assert.Equal(t, anaIDs[0], sessions[1].ID)

	all, err := repo.ListCompletedSessions(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	summary, err := repo.SummarizeAthlete(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.SessionsCompleted)
	assert.Equal(t, int64(1200), summary.TotalDurationSeconds)
	assert.Equal(t, int64(60), summary.TotalPausedSeconds)
	assert.Equal(t, 8, summary.SetsCompleted)
	assert.InDelta(t, 4000.0, summary.Volume, 0.001)
	require.NotNil(t, summary.LastCompletedAt)
	assert.Equal(t, t0.Add(2*time.Hour+10*time.Minute), *summary.LastCompletedAt)

	empty, err := repo.SummarizeAthlete(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, empty.SessionsCompleted)
	assert.Nil(t, empty.LastCompletedAt)
}

func TestOpenSQLite_UsesWAL(t *testing.T) {
	mode, err := db.JournalMode(openTestDB(t))
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

func receive[T any](t *testing.T, ch <-chan model.Update[T]) model.Update[T] {
	t.Helper()
	select {
	case u, ok := <-ch:
		if !ok {
			t.Fatal("stream closed")
		}
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no emission within 2s")
	}
	return model.Update[T]{}
}
