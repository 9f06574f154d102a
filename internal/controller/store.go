package controller

import (
	"context"

	"workout/backend/internal/catalog"
	"workout/backend/internal/model"
)

// Store is the durable source of truth for sessions, exercise instances and sets.
// Point reads return repository.ErrNotFound when nothing matches.
type Store interface {
	GetSession(ctx context.Context, id string) (*model.Session, error)
	GetActiveOrPausedSession(ctx context.Context) (*model.Session, error)
	UpdateSession(ctx context.Context, session model.Session) error

	// Watch streams emit the current list at once and again after every
	// write touching the key. They close when ctx ends.
	WatchExerciseInstances(ctx context.Context, sessionID string) (<-chan model.Update[model.ExerciseInstance], error)
	WatchSets(ctx context.Context, exerciseInstanceID string) (<-chan model.Update[model.Set], error)

	UpsertSetCompletion(ctx context.Context, completion model.SetCompletion) error
	MarkSetSkipped(ctx context.Context, exerciseInstanceID string, setNumber int) error
}

// Handle remembers which session was last active across process restarts.
type Handle interface {
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, sessionID string) error
	Clear(ctx context.Context) error
}

type Catalog interface {
	Lookup(exerciseID string) (catalog.Exercise, bool)
}

// SessionFinished is emitted once when a session is confirmed as finished.
type SessionFinished struct {
	SessionID string `json:"sessionId"`
}
