package model

import "time"

type SessionPhase string

const (
	PhaseActive    SessionPhase = "active"
	PhasePaused    SessionPhase = "paused"
	PhaseCompleted SessionPhase = "completed"
)

// Open reports whether the phase counts against the single open session invariant.
func (p SessionPhase) Open() bool {
	return p == PhaseActive || p == PhasePaused
}

type SetKind string

const (
	SetKindWarmup  SetKind = "warmup"
	SetKindWorking SetKind = "working"
)

type SetStatus string

const (
	SetStatusPlanned    SetStatus = "planned"
	SetStatusInProgress SetStatus = "in_progress"
	SetStatusCompleted  SetStatus = "completed"
	SetStatusSkipped    SetStatus = "skipped"
)

// Terminal reports whether the set no longer takes part in the cursor.
func (s SetStatus) Terminal() bool {
	return s == SetStatusCompleted || s == SetStatusSkipped
}

type Session struct {
	ID                    string       `json:"id"`
	AthleteID             string       `json:"athleteId,omitempty"`
	Phase                 SessionPhase `json:"phase"`
	StartedAt             time.Time    `json:"startedAt"`
	CompletedAt           *time.Time   `json:"completedAt,omitempty"`
	PausedDurationSeconds int64        `json:"pausedDurationSeconds"`
	DurationSeconds       int64        `json:"durationSeconds"`
	CreatedAt             time.Time    `json:"createdAt"`
	UpdatedAt             time.Time    `json:"updatedAt"`
}

type ExerciseInstance struct {
	ID          string `json:"id"`
	SessionID   string `json:"sessionId"`
	ExerciseID  string `json:"exerciseId"`
	OrderIndex  int    `json:"orderIndex"`
	Notes       string `json:"notes,omitempty"`
	RestSeconds *int   `json:"restSeconds,omitempty"`
}

type Set struct {
	ID                 string     `json:"id"`
	ExerciseInstanceID string     `json:"exerciseInstanceId"`
	SetNumber          int        `json:"setNumber"`
	Kind               SetKind    `json:"kind"`
	Status             SetStatus  `json:"status"`
	PlannedWeight      float64    `json:"plannedWeight"`
	PlannedReps        int        `json:"plannedReps"`
	ActualWeight       *float64   `json:"actualWeight,omitempty"`
	ActualReps         *int       `json:"actualReps,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
}

// SetCompletion is the idempotent write keyed by (ExerciseInstanceID, SetNumber).
type SetCompletion struct {
	ExerciseInstanceID string
	SetNumber          int
	Weight             float64
	Reps               int
	CompletedAt        time.Time
}

// AthleteSummary aggregates the completed sessions of one athlete. Volume is
// the sum of weight x reps over completed sets.
type AthleteSummary struct {
	AthleteID            string     `json:"athleteId"`
	SessionsCompleted    int        `json:"sessionsCompleted"`
	TotalDurationSeconds int64      `json:"totalDurationSeconds"`
	TotalPausedSeconds   int64      `json:"totalPausedSeconds"`
	SetsCompleted        int        `json:"setsCompleted"`
	Volume               float64    `json:"volume"`
	LastCompletedAt      *time.Time `json:"lastCompletedAt,omitempty"`
}

// Update is one emission of a live query.
type Update[T any] struct {
	Items []T
	Err   error
}
