package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/discovery-engine/internal/classifier"
	"github.com/sells-group/discovery-engine/internal/model"
)

func TestSubmitAsync_RunsTurnAndCallsBack(t *testing.T) {
	st := newMemoryStore(t)
	e := newTestEngine(t, st, noSignal())
	ctx := context.Background()

	start, err := e.Start(ctx, "")
	require.NoError(t, err)

	called := make(chan *model.TurnResult, 1)
	task := e.SubmitAsync(ctx, start.SessionID(), "async answer", func(res *model.TurnResult, err error) {
		assert.NoError(t, err)
		called <- res
	})

	res, err := task.Wait()
	require.NoError(t, err)
	assert.Equal(t, 1, res.QuestionCount())
	assert.Equal(t, start.SessionID(), task.SessionID)

	select {
	case cbRes := <-called:
		assert.Same(t, res, cbRes)
	default:
		t.Fatal("callback did not run before Wait returned")
	}
}

func TestSubmitAsync_SurvivesCallerCancel(t *testing.T) {
	st := newMemoryStore(t)
	release := make(chan struct{})
	e := newTestEngine(t, st, classifier.Func(func(ctx context.Context, _ string, _ model.PainMatrix) (model.Signal, error) {
		<-release
		return model.NoSignal("stub"), ctx.Err()
	}))

	start, err := e.Start(context.Background(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	task := e.SubmitAsync(ctx, start.SessionID(), "later", nil)
	cancel()
	close(release)

	res, err := task.Wait()
	require.NoError(t, err)
	assert.Equal(t, 1, res.QuestionCount())
}

func TestSubmitAsync_SerializedWithSyncAnswers(t *testing.T) {
	st := newMemoryStore(t)
	e := newTestEngine(t, st, noSignal())
	ctx := context.Background()

	start, err := e.Start(ctx, "")
	require.NoError(t, err)

	tasks := make([]*Task, 0, 3)
	for range 3 {
		tasks = append(tasks, e.SubmitAsync(ctx, start.SessionID(), "bg", nil))
	}
	_, err = e.Answer(ctx, start.SessionID(), "fg")
	require.NoError(t, err)
	for _, task := range tasks {
		_, err := task.Wait()
		require.NoError(t, err)
	}

	stored, err := st.LoadSession(ctx, start.SessionID())
	require.NoError(t, err)
	assert.Equal(t, 4, stored.QuestionCount)
}

func TestSubmitAsync_ReportsTurnError(t *testing.T) {
	e := newTestEngine(t, newMemoryStore(t), noSignal())

	task := e.SubmitAsync(context.Background(), "missing", "hi", nil)
	_, err := task.Wait()
	assert.True(t, errors.Is(err, model.ErrSessionNotFound))
}

func TestSubmitAsync_CallbackPanicIsContained(t *testing.T) {
	st := newMemoryStore(t)
	e := newTestEngine(t, st, noSignal())
	ctx := context.Background()

	start, err := e.Start(ctx, "")
	require.NoError(t, err)

	task := e.SubmitAsync(ctx, start.SessionID(), "first", func(*model.TurnResult, error) {
		panic("callback failed")
	})

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task never finished after its callback panicked")
	}
	res, err := task.Wait()
	require.NoError(t, err)
	assert.Equal(t, 1, res.QuestionCount())

	// The engine keeps serving turns for the same session.
	res, err = e.Answer(ctx, start.SessionID(), "second")
	require.NoError(t, err)
	assert.Equal(t, 2, res.QuestionCount())
	require.NoError(t, e.Close())
}

func TestClose_WaitsForInFlightAndRejectsNew(t *testing.T) {
	st := newMemoryStore(t)
	release := make(chan struct{})
	e := newTestEngine(t, st, classifier.Func(func(context.Context, string, model.PainMatrix) (model.Signal, error) {
		<-release
		return model.NoSignal("stub"), nil
	}))

	start, err := e.Start(context.Background(), "")
	require.NoError(t, err)
	task := e.SubmitAsync(context.Background(), start.SessionID(), "slow", nil)

	closed := make(chan struct{})
	go func() {
		_ = e.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned with a task in flight")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the task finished")
	}
	select {
	case <-task.Done():
	default:
		t.Fatal("task not done after Close")
	}

	var cbErr error
	late := e.SubmitAsync(context.Background(), start.SessionID(), "late", func(_ *model.TurnResult, err error) {
		cbErr = err
	})
	_, err = late.Wait()
	assert.True(t, errors.Is(err, ErrEngineClosed))
	assert.True(t, errors.Is(cbErr, ErrEngineClosed))
}
