package workers_test

import (
	"context"
	"sync"
	"time"

	"github.com/codevalley/robo-worker/internal/llm"
	"github.com/codevalley/robo-worker/internal/storage"
	"github.com/codevalley/robo-worker/pkg/types"
)

// fakeNoteStore is an in-memory storage.NoteStore for worker tests.
type fakeNoteStore struct {
	mu    sync.Mutex
	notes map[int64]*types.Note
}

func newFakeNoteStore(notes ...*types.Note) *fakeNoteStore {
	s := &fakeNoteStore{notes: map[int64]*types.Note{}}
	for _, n := range notes {
		s.notes[n.ID] = n
	}
	return s
}

func (s *fakeNoteStore) Get(ctx context.Context, id int64) (*types.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (s *fakeNoteStore) Create(ctx context.Context, n *types.Note) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = int64(len(s.notes) + 1)
	s.notes[n.ID] = n
	return n.ID, nil
}

func (s *fakeNoteStore) TransitionStatus(ctx context.Context, id int64, from, to types.ProcessingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return storage.ErrNotFound
	}
	if n.ProcessingStatus != from {
		return storage.ErrConflict
	}
	n.ProcessingStatus = to
	return nil
}

func (s *fakeNoteStore) Complete(ctx context.Context, id int64, enrichmentData []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return storage.ErrNotFound
	}
	n.ProcessingStatus = types.StatusCompleted
	n.EnrichmentData = enrichmentData
	return nil
}

func (s *fakeNoteStore) Fail(ctx context.Context, id int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return storage.ErrNotFound
	}
	n.ProcessingStatus = types.StatusFailed
	return nil
}

func (s *fakeNoteStore) ListByStatus(ctx context.Context, status types.ProcessingStatus, limit int) ([]*types.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Note
	for _, n := range s.notes {
		if n.ProcessingStatus == status {
			out = append(out, n)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// fakeTaskStore is an in-memory storage.TaskStore for worker tests.
type fakeTaskStore struct {
	mu      sync.Mutex
	tasks   map[int64]*types.Task
	derived []types.TaskCandidate
}

func newFakeTaskStore(tasks ...*types.Task) *fakeTaskStore {
	s := &fakeTaskStore{tasks: map[int64]*types.Task{}}
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	return s
}

func (s *fakeTaskStore) Get(ctx context.Context, id int64) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTaskStore) Create(ctx context.Context, t *types.Task) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = int64(len(s.tasks) + 1)
	s.tasks[t.ID] = t
	return t.ID, nil
}

func (s *fakeTaskStore) CreateDerived(ctx context.Context, userID string, noteID int64, candidate types.TaskCandidate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.derived = append(s.derived, candidate)
	id := int64(len(s.tasks) + 1)
	s.tasks[id] = &types.Task{
		ID:               id,
		UserID:           userID,
		Content:          candidate.Content,
		ProcessingStatus: types.StatusPending,
		Status:           candidate.Status,
		NoteID:           &noteID,
	}
	return id, nil
}

func (s *fakeTaskStore) TransitionStatus(ctx context.Context, id int64, from, to types.ProcessingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return storage.ErrNotFound
	}
	if t.ProcessingStatus != from {
		return storage.ErrConflict
	}
	t.ProcessingStatus = to
	return nil
}

func (s *fakeTaskStore) Complete(ctx context.Context, id int64, enrichmentData []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return storage.ErrNotFound
	}
	t.ProcessingStatus = types.StatusCompleted
	t.EnrichmentData = enrichmentData
	return nil
}

func (s *fakeTaskStore) Fail(ctx context.Context, id int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return storage.ErrNotFound
	}
	t.ProcessingStatus = types.StatusFailed
	return nil
}

func (s *fakeTaskStore) ListByStatus(ctx context.Context, status types.ProcessingStatus, limit int) ([]*types.Task, error) {
	return nil, nil
}

func (s *fakeTaskStore) ApplySuggestions(ctx context.Context, id int64, priority *types.Priority, dueDate *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return storage.ErrNotFound
	}
	if priority != nil {
		t.Priority = priority
	}
	if dueDate != nil {
		t.DueDate = dueDate
	}
	return nil
}

// fakeActivityStore is an in-memory storage.ActivityStore for worker tests.
type fakeActivityStore struct {
	mu         sync.Mutex
	activities map[int64]*types.Activity
}

func newFakeActivityStore(activities ...*types.Activity) *fakeActivityStore {
	s := &fakeActivityStore{activities: map[int64]*types.Activity{}}
	for _, a := range activities {
		s.activities[a.ID] = a
	}
	return s
}

func (s *fakeActivityStore) Get(ctx context.Context, id int64) (*types.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activities[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *fakeActivityStore) Create(ctx context.Context, a *types.Activity) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = int64(len(s.activities) + 1)
	s.activities[a.ID] = a
	return a.ID, nil
}

func (s *fakeActivityStore) TransitionStatus(ctx context.Context, id int64, from, to types.ProcessingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activities[id]
	if !ok {
		return storage.ErrNotFound
	}
	if a.ProcessingStatus != from {
		return storage.ErrConflict
	}
	a.ProcessingStatus = to
	return nil
}

func (s *fakeActivityStore) Complete(ctx context.Context, id int64, schemaRender []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activities[id]
	if !ok {
		return storage.ErrNotFound
	}
	a.ProcessingStatus = types.StatusCompleted
	a.SchemaRender = schemaRender
	return nil
}

func (s *fakeActivityStore) Fail(ctx context.Context, id int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activities[id]
	if !ok {
		return storage.ErrNotFound
	}
	a.ProcessingStatus = types.StatusFailed
	return nil
}

func (s *fakeActivityStore) ListByStatus(ctx context.Context, status types.ProcessingStatus, limit int) ([]*types.Activity, error) {
	return nil, nil
}

func (s *fakeActivityStore) ListByUser(ctx context.Context, userID string) ([]*types.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Activity
	for _, a := range s.activities {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeMomentStore is an in-memory storage.MomentStore for worker tests.
type fakeMomentStore struct {
	mu      sync.Mutex
	moments []*types.Moment
}

func newFakeMomentStore() *fakeMomentStore {
	return &fakeMomentStore{}
}

func (s *fakeMomentStore) Create(ctx context.Context, m *types.Moment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = int64(len(s.moments) + 1)
	s.moments = append(s.moments, m)
	return m.ID, nil
}

// fakePort is a configurable llm.Port double letting each worker test
// inject per-operation failures and canned results.
type fakePort struct {
	processTextFn   func(ctx context.Context, text string, tc llm.TextContext) (*types.EnrichmentResult, error)
	extractTasksFn  func(ctx context.Context, noteText string, now time.Time) ([]types.TaskCandidate, error)
	analyzeSchemaFn func(ctx context.Context, schema []byte) (*types.SchemaRender, error)
}

var _ llm.Port = (*fakePort)(nil)

func (p *fakePort) ProcessText(ctx context.Context, text string, tc llm.TextContext) (*types.EnrichmentResult, error) {
	if p.processTextFn != nil {
		return p.processTextFn(ctx, text, tc)
	}
	return &types.EnrichmentResult{Content: text, TokensUsed: 1, ModelName: "fake"}, nil
}

func (p *fakePort) ExtractTasks(ctx context.Context, noteText string, now time.Time) ([]types.TaskCandidate, error) {
	if p.extractTasksFn != nil {
		return p.extractTasksFn(ctx, noteText, now)
	}
	return nil, nil
}

func (p *fakePort) AnalyzeActivitySchema(ctx context.Context, schema []byte) (*types.SchemaRender, error) {
	if p.analyzeSchemaFn != nil {
		return p.analyzeSchemaFn(ctx, schema)
	}
	return &types.SchemaRender{RenderType: "form"}, nil
}

func (p *fakePort) HealthCheck(ctx context.Context) (*types.HealthStatus, error) {
	return &types.HealthStatus{OK: true}, nil
}
