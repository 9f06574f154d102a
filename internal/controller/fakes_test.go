package controller

import (
	"context"
	"errors"
	"sync"

	"workout/backend/internal/model"
	"workout/backend/internal/repository"
)

type fakeStore struct {
	mu        sync.Mutex
	sessions  map[string]model.Session
	instances map[string][]model.ExerciseInstance
	sets      map[string][]model.Set

	writeErr    error
	watchSetErr error

	getCalls    int
	scanCalls   int
	upsertCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:  make(map[string]model.Session),
		instances: make(map[string][]model.ExerciseInstance),
		sets:      make(map[string][]model.Set),
	}
}

func (s *fakeStore) failWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

func (s *fakeStore) session(id string) model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

func (s *fakeStore) setsOf(instanceID string) []model.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Set, len(s.sets[instanceID]))
	copy(out, s.sets[instanceID])
	return out
}

func (s *fakeStore) GetSession(_ context.Context, id string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	sess, ok := s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sess, nil
}

func (s *fakeStore) GetActiveOrPausedSession(context.Context) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanCalls++
	for _, sess := range s.sessions {
		if sess.Phase.Open() {
			out := sess
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeStore) UpdateSession(_ context.Context, session model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	if _, ok := s.sessions[session.ID]; !ok {
		return repository.ErrNotFound
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *fakeStore) WatchExerciseInstances(ctx context.Context, sessionID string) (<-chan model.Update[model.ExerciseInstance], error) {
	s.mu.Lock()
	items := append([]model.ExerciseInstance(nil), s.instances[sessionID]...)
	s.mu.Unlock()
	return emitOnce(ctx, model.Update[model.ExerciseInstance]{Items: items}), nil
}

func (s *fakeStore) WatchSets(ctx context.Context, instanceID string) (<-chan model.Update[model.Set], error) {
	s.mu.Lock()
	items := append([]model.Set(nil), s.sets[instanceID]...)
	err := s.watchSetErr
	s.mu.Unlock()
	return emitOnce(ctx, model.Update[model.Set]{Items: items, Err: err}), nil
}

func emitOnce[T any](ctx context.Context, u model.Update[T]) <-chan model.Update[T] {
	ch := make(chan model.Update[T], 1)
	ch <- u
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

func (s *fakeStore) UpsertSetCompletion(_ context.Context, c model.SetCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	if s.writeErr != nil {
		return s.writeErr
	}
	sets := s.sets[c.ExerciseInstanceID]
	for i := range sets {
		if sets[i].SetNumber != c.SetNumber {
			continue
		}
		weight, reps, at := c.Weight, c.Reps, c.CompletedAt
		sets[i].Status = model.SetStatusCompleted
		sets[i].ActualWeight = &weight
		sets[i].ActualReps = &reps
		if sets[i].CompletedAt == nil {
			sets[i].CompletedAt = &at
		}
		return nil
	}
	return errors.New("no such set")
}

func (s *fakeStore) MarkSetSkipped(_ context.Context, instanceID string, setNumber int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	sets := s.sets[instanceID]
	for i := range sets {
		if sets[i].SetNumber == setNumber {
			sets[i].Status = model.SetStatusSkipped
			return nil
		}
	}
	return errors.New("no such set")
}

type fakeHandle struct {
	mu     sync.Mutex
	id     string
	getErr error
}

func (h *fakeHandle) Get(context.Context) (string, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.getErr != nil {
		return "", false, h.getErr
	}
	return h.id, h.id != "", nil
}

func (h *fakeHandle) Set(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.id = id
	return nil
}

func (h *fakeHandle) Clear(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.id = ""
	return nil
}

func (h *fakeHandle) current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}
