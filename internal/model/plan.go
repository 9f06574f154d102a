package model

// SessionPlan describes the exercise instances and planned sets a new session starts with.
// AthleteID is set from the caller's identity, never from the request body.
type SessionPlan struct {
	AthleteID string            `json:"-"`
	Exercises []PlannedExercise `json:"exercises"`
}

type PlannedExercise struct {
	ExerciseID  string       `json:"exerciseId"`
	Notes       string       `json:"notes,omitempty"`
	RestSeconds *int         `json:"restSeconds,omitempty"`
	Sets        []PlannedSet `json:"sets"`
}

type PlannedSet struct {
	Kind   SetKind `json:"kind"`
	Weight float64 `json:"weight"`
	Reps   int     `json:"reps"`
}
