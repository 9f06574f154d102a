package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"workout/backend/internal/model"
)

// WorkoutRepository is the sqlite session store. Point reads return
// ErrNotFound; live queries are served through an in-process change feed, so
// only writes made through the same repository wake watchers.
type WorkoutRepository struct {
	db   *sql.DB
	feed *changeFeed
}

func NewWorkoutRepository(db *sql.DB) *WorkoutRepository {
	return &WorkoutRepository{db: db, feed: newChangeFeed()}
}

const sessionColumns = `id, athlete_id, phase, started_at, completed_at, paused_duration_seconds,
	        duration_seconds, created_at, updated_at`

// CreateSession inserts an active session with its exercise instances and
// planned sets in one transaction. It returns ErrSessionOpen when another
// session is active or paused.
func (r *WorkoutRepository) CreateSession(ctx context.Context, plan model.SessionPlan, now time.Time) (*model.Session, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var open int
	if err := tx.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM sessions WHERE phase IN ('active', 'paused')`,
	).Scan(&open); err != nil {
		return nil, fmt.Errorf("check open session: %w", err)
	}
	if open > 0 {
		return nil, ErrSessionOpen
	}

	session := model.Session{
		ID:        newID(),
		AthleteID: plan.AthleteID,
		Phase:     model.PhaseActive,
		StartedAt: now.UTC(),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO sessions (
			id, athlete_id, phase, started_at, completed_at, paused_duration_seconds,
			duration_seconds, created_at, updated_at
		) VALUES (?, ?, ?, ?, NULL, 0, 0, ?, ?)`,
		session.ID,
		nullString(session.AthleteID),
		session.Phase,
		formatTime(session.StartedAt),
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSessionOpen
		}
		return nil, fmt.Errorf("insert session: %w", err)
	}

	for i, planned := range plan.Exercises {
		instanceID := newID()
		var rest interface{}
		if planned.RestSeconds != nil {
			rest = *planned.RestSeconds
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO exercise_instances (id, session_id, exercise_id, order_index, notes, rest_seconds)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			instanceID,
			session.ID,
			planned.ExerciseID,
			i,
			planned.Notes,
			rest,
		); err != nil {
			return nil, fmt.Errorf("insert exercise instance %d: %w", i, err)
		}

		for j, set := range planned.Sets {
			kind := set.Kind
			if kind == "" {
				kind = model.SetKindWorking
			}
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO sets (
					id, exercise_instance_id, set_number, kind, status, planned_weight, planned_reps
				) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				newID(),
				instanceID,
				j+1,
				kind,
				model.SetStatusPlanned,
				set.Weight,
				set.Reps,
			); err != nil {
				return nil, fmt.Errorf("insert set %d of exercise %d: %w", j+1, i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit session: %w", err)
	}
	r.feed.notify(instancesTopic(session.ID))
	return &session, nil
}

func (r *WorkoutRepository) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`,
		id,
	)
	return scanSession(row)
}

func (r *WorkoutRepository) GetActiveOrPausedSession(ctx context.Context) (*model.Session, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions
		 WHERE phase IN ('active', 'paused')
		 ORDER BY started_at DESC
		 LIMIT 1`,
	)
	return scanSession(row)
}

// UpdateSession writes the mutable session fields as given, including UpdatedAt.
func (r *WorkoutRepository) UpdateSession(ctx context.Context, session model.Session) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE sessions
		 SET phase = ?,
		     completed_at = ?,
		     paused_duration_seconds = ?,
		     duration_seconds = ?,
		     updated_at = ?
		 WHERE id = ?`,
		session.Phase,
		nullTime(session.CompletedAt),
		session.PausedDurationSeconds,
		session.DurationSeconds,
		formatTime(session.UpdatedAt),
		session.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSessionOpen
		}
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCompletedSessions returns finished sessions, newest first. An empty
// athleteID lists every athlete's sessions.
func (r *WorkoutRepository) ListCompletedSessions(ctx context.Context, athleteID string, limit int) ([]model.Session, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions
		 WHERE phase = 'completed'
		   AND (? = '' OR athlete_id = ?)
		 ORDER BY completed_at DESC
		 LIMIT ?`,
		athleteID,
		athleteID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]model.Session, 0, limit)
	for rows.Next() {
		session, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// SummarizeAthlete totals the completed sessions and completed sets of one athlete.
func (r *WorkoutRepository) SummarizeAthlete(ctx context.Context, athleteID string) (*model.AthleteSummary, error) {
	summary := model.AthleteSummary{AthleteID: athleteID}
	var lastCompleted sql.NullString
	if err := r.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1),
		        COALESCE(SUM(duration_seconds), 0),
		        COALESCE(SUM(paused_duration_seconds), 0),
		        MAX(completed_at)
		 FROM sessions
		 WHERE phase = 'completed' AND athlete_id = ?`,
		athleteID,
	).Scan(
		&summary.SessionsCompleted,
		&summary.TotalDurationSeconds,
		&summary.TotalPausedSeconds,
		&lastCompleted,
	); err != nil {
		return nil, fmt.Errorf("summarize sessions: %w", err)
	}

	var err error
	if summary.LastCompletedAt, err = parseNullTime(lastCompleted); err != nil {
		return nil, fmt.Errorf("parse last completed_at: %w", err)
	}

	if err := r.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1), COALESCE(SUM(st.actual_weight * st.actual_reps), 0)
		 FROM sets st
		 JOIN exercise_instances ei ON ei.id = st.exercise_instance_id
		 JOIN sessions s ON s.id = ei.session_id
		 WHERE s.phase = 'completed' AND s.athlete_id = ? AND st.status = 'completed'`,
		athleteID,
	).Scan(&summary.SetsCompleted, &summary.Volume); err != nil {
		return nil, fmt.Errorf("summarize sets: %w", err)
	}
	return &summary, nil
}

func (r *WorkoutRepository) ListExerciseInstances(ctx context.Context, sessionID string) ([]model.ExerciseInstance, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, session_id, exercise_id, order_index, notes, rest_seconds
		 FROM exercise_instances
		 WHERE session_id = ?
		 ORDER BY order_index`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list exercise instances: %w", err)
	}
	defer rows.Close()

	instances := []model.ExerciseInstance{}
	for rows.Next() {
		var inst model.ExerciseInstance
		var rest sql.NullInt64
		if err := rows.Scan(&inst.ID, &inst.SessionID, &inst.ExerciseID, &inst.OrderIndex, &inst.Notes, &rest); err != nil {
			return nil, fmt.Errorf("scan exercise instance: %w", err)
		}
		if rest.Valid {
			value := int(rest.Int64)
			inst.RestSeconds = &value
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exercise instances: %w", err)
	}
	return instances, nil
}

func (r *WorkoutRepository) ListSets(ctx context.Context, exerciseInstanceID string) ([]model.Set, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, exercise_instance_id, set_number, kind, status, planned_weight, planned_reps,
		        actual_weight, actual_reps, completed_at
		 FROM sets
		 WHERE exercise_instance_id = ?
		 ORDER BY set_number`,
		exerciseInstanceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sets: %w", err)
	}
	defer rows.Close()

	sets := []model.Set{}
	for rows.Next() {
		set, scanErr := scanSet(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sets = append(sets, *set)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sets: %w", err)
	}
	return sets, nil
}

func (r *WorkoutRepository) WatchExerciseInstances(ctx context.Context, sessionID string) (<-chan model.Update[model.ExerciseInstance], error) {
	return watch(ctx, r.feed, instancesTopic(sessionID), func(ctx context.Context) ([]model.ExerciseInstance, error) {
		return r.ListExerciseInstances(ctx, sessionID)
	}), nil
}

func (r *WorkoutRepository) WatchSets(ctx context.Context, exerciseInstanceID string) (<-chan model.Update[model.Set], error) {
	return watch(ctx, r.feed, setsTopic(exerciseInstanceID), func(ctx context.Context) ([]model.Set, error) {
		return r.ListSets(ctx, exerciseInstanceID)
	}), nil
}

// UpsertSetCompletion marks the set (exercise instance, set number) completed.
// Repeating a completion updates the actuals in place and keeps the first
// completion time.
func (r *WorkoutRepository) UpsertSetCompletion(ctx context.Context, c model.SetCompletion) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO sets (
			id, exercise_instance_id, set_number, kind, status, actual_weight, actual_reps, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (exercise_instance_id, set_number) DO UPDATE SET
			status = excluded.status,
			actual_weight = excluded.actual_weight,
			actual_reps = excluded.actual_reps,
			completed_at = COALESCE(sets.completed_at, excluded.completed_at)`,
		newID(),
		c.ExerciseInstanceID,
		c.SetNumber,
		model.SetKindWorking,
		model.SetStatusCompleted,
		c.Weight,
		c.Reps,
		formatTime(c.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert set completion: %w", err)
	}
	r.feed.notify(setsTopic(c.ExerciseInstanceID))
	return nil
}

// MarkSetSkipped skips a set that is not completed.
func (r *WorkoutRepository) MarkSetSkipped(ctx context.Context, exerciseInstanceID string, setNumber int) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE sets
		 SET status = ?
		 WHERE exercise_instance_id = ? AND set_number = ? AND status != ?`,
		model.SetStatusSkipped,
		exerciseInstanceID,
		setNumber,
		model.SetStatusCompleted,
	)
	if err != nil {
		return fmt.Errorf("skip set: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("skip set rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	r.feed.notify(setsTopic(exerciseInstanceID))
	return nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(s scanner) (*model.Session, error) {
	session := model.Session{}
	var athleteID sql.NullString
	var startedAt string
	var completedAt sql.NullString
	var createdAt string
	var updatedAt string
	err := s.Scan(
		&session.ID,
		&athleteID,
		&session.Phase,
		&startedAt,
		&completedAt,
		&session.PausedDurationSeconds,
		&session.DurationSeconds,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	session.AthleteID = athleteID.String

	if session.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse session started_at: %w", err)
	}
	if session.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, fmt.Errorf("parse session completed_at: %w", err)
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse session created_at: %w", err)
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse session updated_at: %w", err)
	}
	return &session, nil
}

func scanSet(s scanner) (*model.Set, error) {
	set := model.Set{}
	var actualWeight sql.NullFloat64
	var actualReps sql.NullInt64
	var completedAt sql.NullString
	err := s.Scan(
		&set.ID,
		&set.ExerciseInstanceID,
		&set.SetNumber,
		&set.Kind,
		&set.Status,
		&set.PlannedWeight,
		&set.PlannedReps,
		&actualWeight,
		&actualReps,
		&completedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan set: %w", err)
	}

	if actualWeight.Valid {
		value := actualWeight.Float64
		set.ActualWeight = &value
	}
	if actualReps.Valid {
		value := int(actualReps.Int64)
		set.ActualReps = &value
	}
	if set.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, fmt.Errorf("parse set completed_at: %w", err)
	}
	return &set, nil
}
