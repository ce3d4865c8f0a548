package engine

import (
	"context"
	"runtime/debug"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/discovery-engine/internal/model"
)

// Task is an answer being processed in the background.
type Task struct {
	SessionID string

	done   chan struct{}
	result *model.TurnResult
	err    error
}

// Done is closed once the turn has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the turn finishes and returns its outcome.
func (t *Task) Wait() (*model.TurnResult, error) {
	<-t.done
	return t.result, t.err
}

func (t *Task) finish(res *model.TurnResult, err error) {
	t.result, t.err = res, err
	close(t.done)
}

// SubmitAsync runs the turn in the background under the same per-session
// serialization as Answer. The task outlives ctx cancellation but keeps its
// values. cb, when non-nil, runs once with the outcome before Wait returns.
func (e *Engine) SubmitAsync(ctx context.Context, sessionID, text string, cb func(*model.TurnResult, error)) *Task {
	t := &Task{SessionID: sessionID, done: make(chan struct{})}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		err := eris.Wrapf(ErrEngineClosed, "engine: submit %s", sessionID)
		if cb != nil {
			runCallback(sessionID, cb, nil, err)
		}
		t.finish(nil, err)
		return t
	}
	e.tasks.Add(1)
	e.mu.Unlock()

	e.metrics.AsyncStarted()
	taskCtx := context.WithoutCancel(ctx)
	go func() {
		defer e.tasks.Done()
		defer e.metrics.AsyncFinished()

		var (
			res *model.TurnResult
			err error
		)
		defer func() { t.finish(res, err) }()

		res, err = e.runTask(taskCtx, sessionID, text)
		e.metrics.ObserveAsync(outcomeOf(res, err))
		if err != nil {
			zap.L().Warn("async turn failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		if cb != nil {
			runCallback(sessionID, cb, res, err)
		}
	}()
	return t
}

// runCallback shields the task goroutine from a panicking callback. The
// turn's own outcome is unaffected.
func runCallback(sessionID string, cb func(*model.TurnResult, error), res *model.TurnResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("async callback panicked",
				zap.String("session_id", sessionID),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()
	cb(res, err)
}

func (e *Engine) runTask(ctx context.Context, sessionID, text string) (res *model.TurnResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("async turn panicked",
				zap.String("session_id", sessionID),
				zap.String("stack", string(debug.Stack())),
			)
			res, err = nil, eris.Errorf("engine: async turn panic: %v", r)
		}
	}()
	return e.AnswerWithRetry(ctx, sessionID, text)
}

// Close rejects new async turns and waits for in-flight ones.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.tasks.Wait()
	return nil
}
