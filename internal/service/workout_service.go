package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"workout/backend/internal/catalog"
	"workout/backend/internal/clock"
	"workout/backend/internal/controller"
	apperrors "workout/backend/internal/errors"
	"workout/backend/internal/fsm"
	"workout/backend/internal/model"
	"workout/backend/internal/repository"
	"workout/backend/internal/resttimer"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// AnyAthlete scopes a call to whichever session is open. workoutctl drives
// the runtime as the operator with it.
const AnyAthlete = ""

// WorkoutService owns the controller of the open session. Begin replaces it;
// every other call is delegated to it.
type WorkoutService struct {
	repo     *repository.WorkoutRepository
	handle   controller.Handle
	catalog  *catalog.Catalog
	clock    clock.Clock
	logger   *slog.Logger
	ctrlOpts []controller.Option

	mu       sync.Mutex
	current  *controller.Controller
	stopWait chan struct{}
	waiters  sync.WaitGroup
}

func NewWorkoutService(
	repo *repository.WorkoutRepository,
	handle controller.Handle,
	cat *catalog.Catalog,
	clk clock.Clock,
	logger *slog.Logger,
	opts ...controller.Option,
) *WorkoutService {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctrlOpts := append([]controller.Option{
		controller.WithClock(clk),
		controller.WithLogger(logger),
	}, opts...)
	return &WorkoutService{
		repo:     repo,
		handle:   handle,
		catalog:  cat,
		clock:    clk,
		logger:   logger,
		ctrlOpts: ctrlOpts,
	}
}

// Recover starts a controller over whatever session the store holds. Finding
// no open session is not an error: the controller idles in the error phase
// until Begin.
func (s *WorkoutService) Recover(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.swap(ctx)
	if apperrors.IsCode(err, apperrors.CodeSessionNotFound) {
		s.logger.Info("no open workout session")
		return nil
	}
	return err
}

// Begin creates a session owned by athleteID from plan and hands it to a
// fresh controller. The open session limit is store-wide, so another
// athlete's open session also blocks it.
func (s *WorkoutService) Begin(ctx context.Context, athleteID string, plan model.SessionPlan) (*controller.Snapshot, *apperrors.APIError) {
	if apiErr := s.validatePlan(plan); apiErr != nil {
		return nil, apiErr
	}
	plan.AthleteID = athleteID

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.repo.CreateSession(ctx, plan, s.clock.Now())
	if errors.Is(err, repository.ErrSessionOpen) {
		return nil, apperrors.Conflict("session_open", "finish the open session first", nil)
	}
	if err != nil {
		s.logger.Error("create session failed", "error", err)
		return nil, apperrors.Internal("failed to create session")
	}
	if err := s.handle.Set(ctx, session.ID); err != nil {
		s.logger.Warn("record session handle failed", "session_id", session.ID, "error", err)
	}
	s.logger.Info("workout session created",
		"session_id", session.ID,
		"athlete_id", session.AthleteID,
		"exercises", len(plan.Exercises),
	)

	if err := s.swap(ctx); err != nil {
		return nil, apperrors.FromRuntime(err)
	}
	snap := s.current.Snapshot()
	return &snap, nil
}

// swap closes the current controller and starts a new one. Callers hold mu.
func (s *WorkoutService) swap(ctx context.Context) error {
	s.closeCurrent()

	var cat controller.Catalog
	if s.catalog != nil {
		cat = s.catalog
	}
	ctrl := controller.New(s.repo, s.handle, cat, s.ctrlOpts...)
	s.current = ctrl
	s.stopWait = make(chan struct{})
	s.waiters.Add(1)
	go s.awaitFinish(ctrl, s.stopWait)

	return ctrl.Start(ctx)
}

func (s *WorkoutService) closeCurrent() {
	if s.current == nil {
		return
	}
	close(s.stopWait)
	s.current.Close()
	s.current = nil
}

func (s *WorkoutService) awaitFinish(ctrl *controller.Controller, stop <-chan struct{}) {
	defer s.waiters.Done()
	select {
	case done := <-ctrl.Finished():
		snap := ctrl.Snapshot()
		s.logger.Info("workout finished",
			"session_id", done.SessionID,
			"elapsed_seconds", snap.ElapsedSeconds,
			"paused_seconds", snap.PausedDurationSeconds,
		)
	case <-stop:
	}
}

func (s *WorkoutService) validatePlan(plan model.SessionPlan) *apperrors.APIError {
	if len(plan.Exercises) == 0 {
		return apperrors.BadRequest("invalid_plan", "plan needs at least one exercise")
	}
	for _, ex := range plan.Exercises {
		id := strings.TrimSpace(ex.ExerciseID)
		if id == "" {
			return apperrors.BadRequest("invalid_plan", "exerciseId is required")
		}
		if s.catalog != nil {
			if _, ok := s.catalog.Lookup(id); !ok {
				return apperrors.BadRequest("unknown_exercise", "unknown exercise "+id)
			}
		}
		if ex.RestSeconds != nil && *ex.RestSeconds <= 0 {
			return apperrors.BadRequest("invalid_plan", "restSeconds must be positive")
		}
		if len(ex.Sets) == 0 {
			return apperrors.BadRequest("invalid_plan", "exercise "+id+" has no sets")
		}
		for _, set := range ex.Sets {
			if set.Weight < 0 || set.Reps < 0 {
				return apperrors.BadRequest("invalid_plan", "planned weight and reps must not be negative")
			}
			if set.Kind != "" && set.Kind != model.SetKindWarmup && set.Kind != model.SetKindWorking {
				return apperrors.BadRequest("invalid_plan", "unknown set kind "+string(set.Kind))
			}
		}
	}
	return nil
}

func (s *WorkoutService) active() (*controller.Controller, *apperrors.APIError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, apperrors.Unavailable("runtime_not_ready", "session runtime is not running")
	}
	return s.current, nil
}

// owned returns the current controller when athleteID may act on its
// session. Another athlete's session is reported as missing.
func (s *WorkoutService) owned(athleteID string) (*controller.Controller, *apperrors.APIError) {
	ctrl, apiErr := s.active()
	if apiErr != nil {
		return nil, apiErr
	}
	if !visible(ctrl.Snapshot(), athleteID) {
		return nil, apperrors.FromRuntime(apperrors.SessionNotFound("no open session for this athlete"))
	}
	return ctrl, nil
}

// visible reports whether athleteID may see the session behind snap. A
// runtime without a session hides nothing.
func visible(snap controller.Snapshot, athleteID string) bool {
	return athleteID == AnyAthlete || snap.SessionID == "" || snap.AthleteID == athleteID
}

// run delegates one command and returns the snapshot it produced.
func (s *WorkoutService) run(athleteID string, fn func(*controller.Controller) error) (*controller.Snapshot, *apperrors.APIError) {
	ctrl, apiErr := s.owned(athleteID)
	if apiErr != nil {
		return nil, apiErr
	}
	if err := fn(ctrl); err != nil {
		return nil, mapCommandError(err)
	}
	snap := ctrl.Snapshot()
	return &snap, nil
}

func mapCommandError(err error) *apperrors.APIError {
	switch {
	case errors.Is(err, controller.ErrClosed):
		return apperrors.Unavailable("runtime_closed", "session runtime was replaced, retry")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperrors.Unavailable("request_cancelled", "request ended before the command ran")
	}
	return apperrors.FromRuntime(err)
}

// State returns the runtime snapshot. An athlete looking at someone else's
// session sees the same idle snapshot as when nothing is open.
func (s *WorkoutService) State(athleteID string) (*controller.Snapshot, *apperrors.APIError) {
	ctrl, apiErr := s.active()
	if apiErr != nil {
		return nil, apiErr
	}
	snap := ctrl.Snapshot()
	if !visible(snap, athleteID) {
		snap = controller.Snapshot{
			Phase:       fsm.Error,
			ErrorReason: "session not found",
			Exercises:   []controller.ExerciseView{},
			Rest:        resttimer.State{Status: resttimer.Idle},
		}
	}
	return &snap, nil
}

// Subscribe streams snapshots of the current controller. The channel closes
// when that controller is replaced or closed.
func (s *WorkoutService) Subscribe(athleteID string) (<-chan controller.Snapshot, func(), *apperrors.APIError) {
	ctrl, apiErr := s.owned(athleteID)
	if apiErr != nil {
		return nil, nil, apiErr
	}
	ch, cancel := ctrl.Subscribe()
	return ch, cancel, nil
}

func (s *WorkoutService) Pause(ctx context.Context, athleteID string) (*controller.Snapshot, *apperrors.APIError) {
	return s.run(athleteID, func(c *controller.Controller) error { return c.Pause(ctx) })
}

func (s *WorkoutService) Resume(ctx context.Context, athleteID string) (*controller.Snapshot, *apperrors.APIError) {
	return s.run(athleteID, func(c *controller.Controller) error { return c.Resume(ctx) })
}

func (s *WorkoutService) CompleteSet(ctx context.Context, athleteID string, in controller.CompleteSetInput) (*controller.Snapshot, *apperrors.APIError) {
	return s.run(athleteID, func(c *controller.Controller) error { return c.CompleteSet(ctx, in) })
}

func (s *WorkoutService) SkipSet(ctx context.Context, athleteID string, in controller.SkipSetInput) (*controller.Snapshot, *apperrors.APIError) {
	return s.run(athleteID, func(c *controller.Controller) error { return c.SkipSet(ctx, in) })
}

func (s *WorkoutService) RequestFinish(ctx context.Context, athleteID string) (*controller.Snapshot, *apperrors.APIError) {
	return s.run(athleteID, func(c *controller.Controller) error { return c.RequestFinish(ctx) })
}

func (s *WorkoutService) CancelFinish(ctx context.Context, athleteID string) (*controller.Snapshot, *apperrors.APIError) {
	return s.run(athleteID, func(c *controller.Controller) error { return c.CancelFinish(ctx) })
}

func (s *WorkoutService) ConfirmFinish(ctx context.Context, athleteID string) (*controller.Snapshot, *apperrors.APIError) {
	return s.run(athleteID, func(c *controller.Controller) error { return c.ConfirmFinish(ctx) })
}

func (s *WorkoutService) ExtendRest(ctx context.Context, athleteID string, delta int) (*controller.Snapshot, *apperrors.APIError) {
	return s.run(athleteID, func(c *controller.Controller) error { return c.ExtendRest(ctx, delta) })
}

func (s *WorkoutService) SkipRest(ctx context.Context, athleteID string) (*controller.Snapshot, *apperrors.APIError) {
	return s.run(athleteID, func(c *controller.Controller) error { return c.SkipRest(ctx) })
}

// History lists the athlete's completed sessions, newest first.
func (s *WorkoutService) History(ctx context.Context, athleteID string, limit int) ([]model.Session, *apperrors.APIError) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	sessions, err := s.repo.ListCompletedSessions(ctx, athleteID, limit)
	if err != nil {
		s.logger.Error("list history failed", "athlete_id", athleteID, "error", err)
		return nil, apperrors.Internal("failed to get history")
	}
	return sessions, nil
}

func (s *WorkoutService) Summary(ctx context.Context, athleteID string) (*model.AthleteSummary, *apperrors.APIError) {
	summary, err := s.repo.SummarizeAthlete(ctx, athleteID)
	if err != nil {
		s.logger.Error("summarize athlete failed", "athlete_id", athleteID, "error", err)
		return nil, apperrors.Internal("failed to summarize workouts")
	}
	return summary, nil
}

func (s *WorkoutService) Exercises() []catalog.Exercise {
	if s.catalog == nil {
		return []catalog.Exercise{}
	}
	return s.catalog.List()
}

// Close stops the current controller and waits for its finish watcher.
func (s *WorkoutService) Close() {
	s.mu.Lock()
	s.closeCurrent()
	s.mu.Unlock()
	s.waiters.Wait()
}
