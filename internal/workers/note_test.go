package workers_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/codevalley/robo-worker/internal/clock"
	"github.com/codevalley/robo-worker/internal/enqueue"
	"github.com/codevalley/robo-worker/internal/llm"
	"github.com/codevalley/robo-worker/internal/workers"
	"github.com/codevalley/robo-worker/pkg/types"
	"github.com/alicebob/miniredis/v2"
	"github.com/codevalley/robo-worker/internal/broker"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnqueuer(t *testing.T) *enqueue.Enqueuer {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return enqueue.New(broker.NewRedisBrokerFromClient(client), 0)
}

func notePayloadBytes(t *testing.T, noteID int64) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]int64{"note_id": noteID})
	require.NoError(t, err)
	return b
}

func TestNoteWorker_EnrichesAndCompletes(t *testing.T) {
	notes := newFakeNoteStore(&types.Note{ID: 1, UserID: "u1", Content: "buy milk", ProcessingStatus: types.StatusPending})
	w := &workers.NoteWorker{
		Notes:      notes,
		Tasks:      newFakeTaskStore(),
		Activities: newFakeActivityStore(),
		Moments:    newFakeMomentStore(),
		Port:       &fakePort{},
		Enqueuer:   newTestEnqueuer(t),
		Clock:      clock.Real{},
	}

	err := w.Handle(notePayloadBytes(t, 1))
	require.NoError(t, err)

	n, err := notes.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, n.ProcessingStatus)
	assert.NotEmpty(t, n.EnrichmentData)
}

func TestNoteWorker_EnrichmentFailureFailsTheNote(t *testing.T) {
	notes := newFakeNoteStore(&types.Note{ID: 2, UserID: "u1", Content: "x", ProcessingStatus: types.StatusPending})
	w := &workers.NoteWorker{
		Notes:      notes,
		Tasks:      newFakeTaskStore(),
		Activities: newFakeActivityStore(),
		Moments:    newFakeMomentStore(),
		Port: &fakePort{
			processTextFn: func(ctx context.Context, text string, tc llm.TextContext) (*types.EnrichmentResult, error) {
				return nil, llm.NewError(llm.KindPermanent, errors.New("boom"))
			},
		},
		Enqueuer: newTestEnqueuer(t),
		Clock:    clock.Real{},
	}

	err := w.Handle(notePayloadBytes(t, 2))
	require.NoError(t, err) // business failure, not an infra retry

	n, err := notes.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, n.ProcessingStatus)
}

func TestNoteWorker_TaskExtractionFailureStillCompletesNote(t *testing.T) {
	notes := newFakeNoteStore(&types.Note{ID: 3, UserID: "u1", Content: "call mom", ProcessingStatus: types.StatusPending})
	w := &workers.NoteWorker{
		Notes:      notes,
		Tasks:      newFakeTaskStore(),
		Activities: newFakeActivityStore(),
		Moments:    newFakeMomentStore(),
		Port: &fakePort{
			extractTasksFn: func(ctx context.Context, noteText string, now time.Time) ([]types.TaskCandidate, error) {
				return nil, errors.New("extraction down")
			},
		},
		Enqueuer: newTestEnqueuer(t),
		Clock:    clock.Real{},
	}

	err := w.Handle(notePayloadBytes(t, 3))
	require.NoError(t, err)

	n, err := notes.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, n.ProcessingStatus)
}

func TestNoteWorker_ExtractsTasksAndEnqueuesThem(t *testing.T) {
	notes := newFakeNoteStore(&types.Note{ID: 4, UserID: "u1", Content: "remember to pay rent", ProcessingStatus: types.StatusPending})
	tasks := newFakeTaskStore()
	w := &workers.NoteWorker{
		Notes:      notes,
		Tasks:      tasks,
		Activities: newFakeActivityStore(),
		Moments:    newFakeMomentStore(),
		Port: &fakePort{
			extractTasksFn: func(ctx context.Context, noteText string, now time.Time) ([]types.TaskCandidate, error) {
				return []types.TaskCandidate{{Content: "pay rent", Priority: types.PriorityHigh, Status: types.TaskStatusTodo}}, nil
			},
		},
		Enqueuer: newTestEnqueuer(t),
		Clock:    clock.Real{},
	}

	err := w.Handle(notePayloadBytes(t, 4))
	require.NoError(t, err)
	assert.Len(t, tasks.derived, 1)
	assert.Equal(t, "pay rent", tasks.derived[0].Content)
}

func TestNoteWorker_NoActivitiesSkipsMomentExtraction(t *testing.T) {
	notes := newFakeNoteStore(&types.Note{ID: 5, UserID: "u1", Content: "went for a run", ProcessingStatus: types.StatusPending})
	moments := newFakeMomentStore()
	called := false
	w := &workers.NoteWorker{
		Notes:      notes,
		Tasks:      newFakeTaskStore(),
		Activities: newFakeActivityStore(), // empty: no activities for u1
		Moments:    moments,
		Port: &fakePort{
			processTextFn: func(ctx context.Context, text string, tc llm.TextContext) (*types.EnrichmentResult, error) {
				if tc.Type == "moment_extraction" {
					called = true
				}
				return &types.EnrichmentResult{Content: text}, nil
			},
		},
		Enqueuer: newTestEnqueuer(t),
		Clock:    clock.Real{},
	}

	err := w.Handle(notePayloadBytes(t, 5))
	require.NoError(t, err)
	assert.False(t, called, "moment extraction should be skipped when user has no activities")
	assert.Empty(t, moments.moments)
}

func TestNoteWorker_IdempotencyGuardSkipsAlreadyCompletedNote(t *testing.T) {
	notes := newFakeNoteStore(&types.Note{ID: 6, UserID: "u1", Content: "x", ProcessingStatus: types.StatusCompleted, EnrichmentData: []byte(`{"content":"X"}`)})
	w := &workers.NoteWorker{
		Notes:      notes,
		Tasks:      newFakeTaskStore(),
		Activities: newFakeActivityStore(),
		Moments:    newFakeMomentStore(),
		Port:       &fakePort{},
		Enqueuer:   newTestEnqueuer(t),
		Clock:      clock.Real{},
	}

	err := w.Handle(notePayloadBytes(t, 6))
	require.NoError(t, err)

	n, err := notes.Get(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, `{"content":"X"}`, string(n.EnrichmentData))
}

func TestNoteWorker_EmptyContentFailsWithoutCallingTheLLM(t *testing.T) {
	notes := newFakeNoteStore(&types.Note{ID: 7, UserID: "u1", Content: "", ProcessingStatus: types.StatusPending})
	called := false
	w := &workers.NoteWorker{
		Notes:      notes,
		Tasks:      newFakeTaskStore(),
		Activities: newFakeActivityStore(),
		Moments:    newFakeMomentStore(),
		Port: &fakePort{
			processTextFn: func(ctx context.Context, text string, tc llm.TextContext) (*types.EnrichmentResult, error) {
				called = true
				return &types.EnrichmentResult{Content: text}, nil
			},
		},
		Enqueuer: newTestEnqueuer(t),
		Clock:    clock.Real{},
	}

	err := w.Handle(notePayloadBytes(t, 7))
	require.NoError(t, err)

	n, err := notes.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, n.ProcessingStatus)
	assert.False(t, called, "empty content must fail without an LLM call")
}

func TestNoteWorker_ExtractsMomentsWhenActivitiesExist(t *testing.T) {
	notes := newFakeNoteStore(&types.Note{ID: 8, UserID: "u1", Content: "ran 5k this morning", ProcessingStatus: types.StatusPending})
	activities := newFakeActivityStore(&types.Activity{ID: 1, UserID: "u1", Name: "running"})
	moments := newFakeMomentStore()
	w := &workers.NoteWorker{
		Notes:      notes,
		Tasks:      newFakeTaskStore(),
		Activities: activities,
		Moments:    moments,
		Port: &fakePort{
			processTextFn: func(ctx context.Context, text string, tc llm.TextContext) (*types.EnrichmentResult, error) {
				if tc.Type == "moment_extraction" {
					candidates := []types.MomentCandidate{
						{ActivityName: "running", Data: map[string]interface{}{"distance_km": 5}},
					}
					raw, _ := json.Marshal(candidates)
					return &types.EnrichmentResult{Content: string(raw)}, nil
				}
				return &types.EnrichmentResult{Content: text}, nil
			},
		},
		Enqueuer: newTestEnqueuer(t),
		Clock:    clock.Real{},
	}

	err := w.Handle(notePayloadBytes(t, 8))
	require.NoError(t, err)
	require.Len(t, moments.moments, 1)
	assert.Equal(t, int64(1), moments.moments[0].ActivityID)
}

func TestNoteWorker_UnknownNoteIsANoop(t *testing.T) {
	w := &workers.NoteWorker{
		Notes:      newFakeNoteStore(),
		Tasks:      newFakeTaskStore(),
		Activities: newFakeActivityStore(),
		Moments:    newFakeMomentStore(),
		Port:       &fakePort{},
		Enqueuer:   newTestEnqueuer(t),
		Clock:      clock.Real{},
	}

	err := w.Handle(notePayloadBytes(t, 999))
	require.NoError(t, err)
}
