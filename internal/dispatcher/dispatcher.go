package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/OCAP2/hlabridge/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HandlerFunc processes an application message.
type HandlerFunc func(*core.Message) error

// ErrNoHandler is returned for a message type without a handler when no
// default handler is registered.
var ErrNoHandler = errors.New("no handler for message type")

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher closed")

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// defaultKey names the default handler in metrics.
const defaultKey = "*"

// Dispatcher routes application messages to handlers by message type.
type Dispatcher struct {
	handlers map[core.MessageType]HandlerFunc
	fallback HandlerFunc
	logger   Logger

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	// Track buffers for gauge callback
	mu      sync.RWMutex
	buffers map[string]chan *core.Message
	closed  bool
	wg      sync.WaitGroup
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[core.MessageType]HandlerFunc),
		buffers:  make(map[string]chan *core.Message),
		logger:   logger,
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of messages in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for key, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("type", key)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.messages.processed",
		metric.WithDescription("Total messages processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.messages.dropped",
		metric.WithDescription("Total messages dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for a message type with optional configuration.
func (d *Dispatcher) Register(t core.MessageType, h HandlerFunc, opts ...Option) {
	d.handlers[t] = d.wrap(string(t), h, opts)
}

// RegisterDefault sets the handler for message types without their own.
func (d *Dispatcher) RegisterDefault(h HandlerFunc, opts ...Option) {
	d.fallback = d.wrap(defaultKey, h, opts)
}

func (d *Dispatcher) wrap(key string, h HandlerFunc, opts []Option) HandlerFunc {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(key, cfg.bufferSize, cfg.blocking, handler)
	}

	if cfg.logged {
		handler = d.withLogging(key, handler)
	}

	return handler
}

// Dispatch routes a message to its registered handler, or to the default.
func (d *Dispatcher) Dispatch(msg *core.Message) error {
	// Held for the whole call so Close cannot close a buffer mid-send.
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	h, ok := d.handlers[msg.Type]
	if !ok {
		h = d.fallback
	}
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, msg.Type)
	}
	return h(msg)
}

// Send dispatches msg and logs a failure. It lets the dispatcher act as
// the sink of a federate coordinator.
func (d *Dispatcher) Send(msg *core.Message) {
	if err := d.Dispatch(msg); err != nil {
		d.logger.Error("dispatch failed", "type", msg.Type, "actor", msg.AboutActorID, "error", err)
	}
}

// HasHandler returns true if a handler is registered for the message type.
func (d *Dispatcher) HasHandler(t core.MessageType) bool {
	_, ok := d.handlers[t]
	return ok
}

// Close stops accepting messages and waits for buffered handlers to
// drain their queues.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) withBuffer(key string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan *core.Message, size)

	d.mu.Lock()
	d.buffers[key] = buffer
	d.mu.Unlock()

	keyAttr := attribute.String("type", key)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for msg := range buffer {
			if err := h(msg); err != nil {
				d.logger.Error("buffered handler failed", "type", msg.Type, "error", err)
			}
			d.processed.Add(context.Background(), 1, metric.WithAttributes(keyAttr))
		}
	}()

	if blocking {
		return func(msg *core.Message) error {
			buffer <- msg
			return nil
		}
	}

	return func(msg *core.Message) error {
		select {
		case buffer <- msg:
			return nil
		default:
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(keyAttr))
			return fmt.Errorf("queue full: %s", key)
		}
	}
}

func (d *Dispatcher) withLogging(key string, h HandlerFunc) HandlerFunc {
	return func(msg *core.Message) error {
		start := time.Now()
		d.logger.Debug("handling message", "type", key, "params", len(msg.Params()))

		err := h(msg)

		if err != nil {
			d.logger.Error("message failed", "type", key, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("message complete", "type", key, "duration", time.Since(start))
		}

		return err
	}
}
