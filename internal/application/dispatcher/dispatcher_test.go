package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shwehr/approval-engine/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func testEvent() *event.Event {
	return event.NewEvent(event.TypeWorkflowSubmitted, "wf-1", nil)
}

func TestSubscribe(t *testing.T) {
	t.Run("dispatches to subscribed handler", func(t *testing.T) {
		d := NewDispatcher()
		called := false

		d.Subscribe(event.TypeWorkflowSubmitted, func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})

		if err := d.Dispatch(context.Background(), testEvent()); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if !called {
			t.Error("expected handler to be called")
		}
	})

	t.Run("dispatches to all handlers in order", func(t *testing.T) {
		d := NewDispatcher()
		var order []int

		d.Subscribe(event.TypeWorkflowSubmitted, func(ctx context.Context, evt *event.Event) error {
			order = append(order, 1)
			return nil
		})
		d.Subscribe(event.TypeWorkflowSubmitted, func(ctx context.Context, evt *event.Event) error {
			order = append(order, 2)
			return nil
		})

		if err := d.Dispatch(context.Background(), testEvent()); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if len(order) != 2 || order[0] != 1 || order[1] != 2 {
			t.Errorf("expected handlers to run in order [1, 2], got %v", order)
		}
	})

	t.Run("ignores events of other types", func(t *testing.T) {
		d := NewDispatcher()
		called := false

		d.Subscribe(event.TypeWorkflowApproved, func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})

		if err := d.Dispatch(context.Background(), testEvent()); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if called {
			t.Error("handler for another event type should not run")
		}
	})
}

func TestUnsubscribe(t *testing.T) {
	d := NewDispatcher()
	called := false

	d.SubscribeNamed(event.TypeWorkflowSubmitted, "audit", func(ctx context.Context, evt *event.Event) error {
		called = true
		return nil
	})
	d.Unsubscribe(event.TypeWorkflowSubmitted, "audit")

	if err := d.Dispatch(context.Background(), testEvent()); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if called {
		t.Error("expected handler not to be called after unsubscribe")
	}
}

func TestDispatch(t *testing.T) {
	t.Run("returns first handler error", func(t *testing.T) {
		d := NewDispatcher()
		wantErr := errors.New("handler error")
		secondCalled := false

		d.Subscribe(event.TypeWorkflowSubmitted, func(ctx context.Context, evt *event.Event) error {
			return wantErr
		})
		d.Subscribe(event.TypeWorkflowSubmitted, func(ctx context.Context, evt *event.Event) error {
			secondCalled = true
			return nil
		})

		err := d.Dispatch(context.Background(), testEvent())
		if !errors.Is(err, wantErr) {
			t.Fatalf("expected wrapped handler error, got %v", err)
		}
		if secondCalled {
			t.Error("expected dispatch to stop at first error")
		}
	})

	t.Run("recovers from handler panic", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))

		d.Subscribe(event.TypeWorkflowSubmitted, func(ctx context.Context, evt *event.Event) error {
			panic("handler panic")
		})

		if err := d.Dispatch(context.Background(), testEvent()); err == nil {
			t.Fatal("expected error from panic recovery")
		}
		if logger.ErrorCount() == 0 {
			t.Error("expected panic to be logged")
		}
	})

	t.Run("fails after close", func(t *testing.T) {
		d := NewDispatcher()
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if err := d.Dispatch(context.Background(), testEvent()); err == nil {
			t.Fatal("expected error when dispatching to closed dispatcher")
		}
	})
}

func TestDispatchAsync(t *testing.T) {
	t.Run("runs handlers without blocking the caller", func(t *testing.T) {
		d := NewDispatcher()
		var called atomic.Int32

		d.Subscribe(event.TypeWorkflowSubmitted, func(ctx context.Context, evt *event.Event) error {
			time.Sleep(10 * time.Millisecond)
			called.Add(1)
			return nil
		})

		d.DispatchAsync(context.Background(), testEvent())

		// Close waits for in-flight handlers
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if called.Load() != 1 {
			t.Errorf("expected 1 handler call, got %d", called.Load())
		}
	})

	t.Run("continues past handler errors", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		var called atomic.Int32

		d.Subscribe(event.TypeWorkflowSubmitted, func(ctx context.Context, evt *event.Event) error {
			return errors.New("handler error")
		})
		d.Subscribe(event.TypeWorkflowSubmitted, func(ctx context.Context, evt *event.Event) error {
			called.Add(1)
			return nil
		})

		d.DispatchAsync(context.Background(), testEvent())
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}

		if called.Load() != 1 {
			t.Errorf("expected second handler to run, got %d calls", called.Load())
		}
		if logger.ErrorCount() == 0 {
			t.Error("expected error to be logged")
		}
	})

	t.Run("drops events after close", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		var called atomic.Int32

		d.Subscribe(event.TypeWorkflowSubmitted, func(ctx context.Context, evt *event.Event) error {
			called.Add(1)
			return nil
		})

		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		d.DispatchAsync(context.Background(), testEvent())

		time.Sleep(20 * time.Millisecond)
		if called.Load() > 0 {
			t.Error("expected no handler calls after close")
		}
	})
}

func TestListHandlers(t *testing.T) {
	d := NewDispatcher()

	d.SubscribeNamed(event.TypeWorkflowSubmitted, "audit", func(ctx context.Context, evt *event.Event) error {
		return nil
	})
	d.SubscribeNamed(event.TypeWorkflowSubmitted, "notify", func(ctx context.Context, evt *event.Event) error {
		return nil
	})
	d.SubscribeNamed(event.TypeWorkflowRejected, "other", func(ctx context.Context, evt *event.Event) error {
		return nil
	})

	handlers := d.ListHandlers(event.TypeWorkflowSubmitted)
	if len(handlers) != 2 {
		t.Fatalf("expected 2 handlers, got %d", len(handlers))
	}
	for _, h := range handlers {
		if h.Handler != nil {
			t.Error("expected handler function not to be exposed")
		}
	}
}

func TestClose(t *testing.T) {
	t.Run("waits for async handlers", func(t *testing.T) {
		d := NewDispatcher()
		var completed atomic.Bool

		d.Subscribe(event.TypeWorkflowSubmitted, func(ctx context.Context, evt *event.Event) error {
			time.Sleep(50 * time.Millisecond)
			completed.Store(true)
			return nil
		})

		d.DispatchAsync(context.Background(), testEvent())
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if !completed.Load() {
			t.Error("expected async handler to finish before Close returns")
		}
	})

	t.Run("returns error on double close", func(t *testing.T) {
		d := NewDispatcher()
		if err := d.Close(); err != nil {
			t.Fatalf("first close failed: %v", err)
		}
		if err := d.Close(); err == nil {
			t.Fatal("expected error on second close")
		}
	})
}

func TestConcurrentSubscribe(t *testing.T) {
	d := NewDispatcher()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.SubscribeNamed(event.TypeWorkflowSubmitted, fmt.Sprintf("handler-%d", id), func(ctx context.Context, evt *event.Event) error {
				return nil
			})
		}(i)
	}
	wg.Wait()

	if len(d.ListHandlers(event.TypeWorkflowSubmitted)) != 10 {
		t.Errorf("expected 10 handlers, got %d", len(d.ListHandlers(event.TypeWorkflowSubmitted)))
	}
}
