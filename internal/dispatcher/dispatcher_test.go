package dispatcher

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OCAP2/hlabridge/pkg/core"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func (l *testLogger) hasError() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, msg := range l.messages {
		if len(msg) >= 5 && msg[:5] == "ERROR" {
			return true
		}
	}
	return false
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func msg(t core.MessageType) *core.Message {
	return core.NewMessage(t)
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got *core.Message
	d.Register(core.ActorCreated, func(m *core.Message) error {
		got = m
		return nil
	})

	sent := msg(core.ActorCreated)
	if err := d.Dispatch(sent); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got != sent {
		t.Error("handler was not called with the message")
	}
}

func TestDispatcher_UnknownType(t *testing.T) {
	d, _ := newTestDispatcher(t)

	err := d.Dispatch(msg("Unknown"))

	if !errors.Is(err, ErrNoHandler) {
		t.Errorf("expected ErrNoHandler, got %v", err)
	}
}

func TestDispatcher_DefaultHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var specific, fallback int
	d.Register(core.ActorDeleted, func(*core.Message) error { specific++; return nil })
	d.RegisterDefault(func(*core.Message) error { fallback++; return nil })

	_ = d.Dispatch(msg(core.ActorDeleted))
	_ = d.Dispatch(msg("WeaponFired"))
	_ = d.Dispatch(msg("Detonation"))

	if specific != 1 || fallback != 2 {
		t.Errorf("expected 1 specific and 2 default calls, got %d and %d", specific, fallback)
	}
}

func TestDispatcher_SendLogsFailures(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Send(msg("Unknown"))

	if !logger.hasError() {
		t.Error("expected error log message")
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register(core.ActorUpdated, func(*core.Message) error {
		processed.Add(1)
		wg.Done()
		return nil
	}, Buffered(100))

	for i := 0; i < 3; i++ {
		if err := d.Dispatch(msg(core.ActorUpdated)); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}

	wg.Wait()

	if processed.Load() != 3 {
		t.Errorf("expected 3 processed, got %d", processed.Load())
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	// Block the handler so queue fills up
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Register(core.ActorUpdated, func(*core.Message) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil
	}, Buffered(2))

	_ = d.Dispatch(msg(core.ActorUpdated)) // being processed
	<-started
	_ = d.Dispatch(msg(core.ActorUpdated)) // queued
	_ = d.Dispatch(msg(core.ActorUpdated)) // queued

	// This should be dropped
	if err := d.Dispatch(msg(core.ActorUpdated)); err == nil {
		t.Error("expected error when queue is full")
	}

	close(block)
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Register(core.ActorUpdated, func(*core.Message) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil
	}, Buffered(1), Blocking())

	// First message starts processing
	_ = d.Dispatch(msg(core.ActorUpdated))
	<-started
	// Second message fills the queue
	_ = d.Dispatch(msg(core.ActorUpdated))

	done := make(chan struct{})
	go func() {
		_ = d.Dispatch(msg(core.ActorUpdated))
		close(done)
	}()

	select {
	case <-done:
		t.Error("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
		// Expected - dispatch is blocking
	}

	close(block)
}

func TestDispatcher_BufferedHandlerErrorIsLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.RegisterDefault(func(*core.Message) error {
		return fmt.Errorf("test error")
	}, Buffered(4))

	_ = d.Dispatch(msg("Anything"))
	d.Close()

	if !logger.hasError() {
		t.Error("expected error log message")
	}
}

func TestDispatcher_CloseDrainsQueues(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	d.Register(core.ActorUpdated, func(*core.Message) error {
		time.Sleep(time.Millisecond)
		processed.Add(1)
		return nil
	}, Buffered(10))

	for i := 0; i < 5; i++ {
		_ = d.Dispatch(msg(core.ActorUpdated))
	}
	d.Close()
	d.Close()

	if processed.Load() != 5 {
		t.Errorf("expected 5 processed after close, got %d", processed.Load())
	}
	if err := d.Dispatch(msg(core.ActorUpdated)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(core.ActorCreated, func(*core.Message) error {
		return nil
	}, Logged())

	_ = d.Dispatch(msg(core.ActorCreated))

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(core.ActorCreated, func(*core.Message) error {
		return fmt.Errorf("test error")
	}, Logged())

	_ = d.Dispatch(msg(core.ActorCreated))

	if !logger.hasError() {
		t.Error("expected error log message")
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(core.ActorCreated, func(*core.Message) error { return nil })

	if !d.HasHandler(core.ActorCreated) {
		t.Error("expected handler to exist")
	}

	if d.HasHandler(core.ActorDeleted) {
		t.Error("expected handler to not exist")
	}
}

func TestDispatcher_CombinedOptions(t *testing.T) {
	d, logger := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	d.Register(core.ActorUpdated, func(*core.Message) error {
		processed.Add(1)
		wg.Done()
		return nil
	}, Buffered(100), Logged())

	if err := d.Dispatch(msg(core.ActorUpdated)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	wg.Wait()

	if processed.Load() != 1 {
		t.Errorf("expected 1 processed, got %d", processed.Load())
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected log messages, got %d", len(logger.messages))
	}
}
