// Package natsrti carries a federation over NATS subjects. Every federate
// resolves names against its own dynamic object model, so envelopes carry
// class, attribute and parameter names rather than handles.
//
// Subjects are hla.<execution>.object.<class> for attribute updates and
// object removal and hla.<execution>.interaction.<class> for interactions.
package natsrti

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/OCAP2/hlabridge/internal/rti"
	"github.com/OCAP2/hlabridge/pkg/hla"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const subjectPrefix = "hla"

const (
	kindUpdate      = "update"
	kindRemove      = "remove"
	kindInteraction = "interaction"
)

// envelope is the JSON body of every message. Values are keyed by
// attribute or parameter name.
type envelope struct {
	Kind     string            `json:"kind"`
	Sender   string            `json:"sender"`
	Federate string            `json:"federate,omitempty"`
	Class    string            `json:"class"`
	Object   string            `json:"object,omitempty"`
	Values   map[string][]byte `json:"values,omitempty"`
	Tag      string            `json:"tag,omitempty"`
}

// Config holds the connection settings.
type Config struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultConfig returns settings for a local server.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "hla-bridge",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// Conn is the part of *nats.Conn a session uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Connect dials the server and returns the connection for NewSession.
func Connect(cfg Config, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Debug("nats connection closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("nats async error", "subject", subject, "error", err)
		}),
	}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.URL, err)
	}
	return conn, nil
}

type instance struct {
	class hla.ObjectClassHandle
	name  string
}

// Session is a federate on a NATS connection. It implements hla.Session.
type Session struct {
	conn   Conn
	fom    *rti.FOM
	id     string
	logger *slog.Logger

	mu            sync.Mutex
	execution     string
	federate      string
	handler       hla.EventHandler
	sub           *nats.Subscription
	queue         []hla.Event
	nextObject    uint32
	subscribed    map[hla.ObjectClassHandle]map[hla.AttributeHandle]bool
	published     map[hla.ObjectClassHandle]bool
	subscribedInt map[hla.InteractionClassHandle]bool
	publishedInt  map[hla.InteractionClassHandle]bool
	owned         map[hla.ObjectHandle]instance
	remote        map[hla.ObjectHandle]instance
	byName        map[string]hla.ObjectHandle
}

var _ hla.Session = (*Session)(nil)

// NewSession creates an unjoined session on conn with its own dynamic
// object model.
func NewSession(conn Conn, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		conn:   conn,
		fom:    rti.NewDynamicFOM(),
		id:     uuid.NewString(),
		logger: logger,
	}
}

// FOM returns the session's object model.
func (s *Session) FOM() *rti.FOM {
	return s.fom
}

// CreateFederationExecution is a no-op: an execution exists as soon as a
// federate uses its subjects.
func (s *Session) CreateFederationExecution(string, string) error {
	return nil
}

// DestroyFederationExecution is a no-op.
func (s *Session) DestroyFederationExecution(string) error {
	return nil
}

// JoinFederationExecution subscribes to every subject of the execution.
func (s *Session) JoinFederationExecution(federate, execution string, handler hla.EventHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.execution != "" {
		return fmt.Errorf("%s: %w", federate, hla.ErrAlreadyJoined)
	}
	sub, err := s.conn.Subscribe(executionSubject(execution)+".>", s.receive)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", execution, err)
	}
	s.execution = execution
	s.federate = federate
	s.handler = handler
	s.sub = sub
	s.queue = nil
	s.subscribed = make(map[hla.ObjectClassHandle]map[hla.AttributeHandle]bool)
	s.published = make(map[hla.ObjectClassHandle]bool)
	s.subscribedInt = make(map[hla.InteractionClassHandle]bool)
	s.publishedInt = make(map[hla.InteractionClassHandle]bool)
	s.owned = make(map[hla.ObjectHandle]instance)
	s.remote = make(map[hla.ObjectHandle]instance)
	s.byName = make(map[string]hla.ObjectHandle)
	return nil
}

// ResignFederationExecution removes the objects the federate registered
// and unsubscribes.
func (s *Session) ResignFederationExecution() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.execution == "" {
		return hla.ErrNotJoined
	}
	var errs []error
	for _, o := range s.owned {
		if err := s.publish(kindRemove, s.objectSubject(o.class), o.class, o.name, nil, "resigned"); err != nil {
			errs = append(errs, err)
		}
	}
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribing: %w", err))
		}
	}
	s.execution = ""
	s.sub = nil
	s.handler = nil
	s.queue = nil
	return errors.Join(errs...)
}

func (s *Session) ObjectClassHandle(name string) (hla.ObjectClassHandle, error) {
	return s.fom.ObjectClassHandle(name)
}

func (s *Session) ObjectClassName(h hla.ObjectClassHandle) (string, error) {
	return s.fom.ObjectClassName(h)
}

func (s *Session) AttributeHandle(name string, class hla.ObjectClassHandle) (hla.AttributeHandle, error) {
	return s.fom.AttributeHandle(name, class)
}

func (s *Session) AttributeName(h hla.AttributeHandle, class hla.ObjectClassHandle) (string, error) {
	return s.fom.AttributeName(h, class)
}

func (s *Session) InteractionClassHandle(name string) (hla.InteractionClassHandle, error) {
	return s.fom.InteractionClassHandle(name)
}

func (s *Session) InteractionClassName(h hla.InteractionClassHandle) (string, error) {
	return s.fom.InteractionClassName(h)
}

func (s *Session) ParameterHandle(name string, class hla.InteractionClassHandle) (hla.ParameterHandle, error) {
	return s.fom.ParameterHandle(name, class)
}

// ObjectClassOf returns the class of a discovered or registered object.
func (s *Session) ObjectClassOf(obj hla.ObjectHandle) (hla.ObjectClassHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.execution == "" {
		return 0, hla.ErrNotJoined
	}
	if o, ok := s.remote[obj]; ok {
		return o.class, nil
	}
	if o, ok := s.owned[obj]; ok {
		return o.class, nil
	}
	return 0, fmt.Errorf("object %d: %w", obj, hla.ErrObjectNotKnown)
}

// SubscribeObjectClassAttributes adds attrs to the subscribed set of class.
func (s *Session) SubscribeObjectClassAttributes(class hla.ObjectClassHandle, attrs []hla.AttributeHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.execution == "" {
		return hla.ErrNotJoined
	}
	set, ok := s.subscribed[class]
	if !ok {
		set = make(map[hla.AttributeHandle]bool)
		s.subscribed[class] = set
	}
	for _, a := range attrs {
		set[a] = true
	}
	return nil
}

func (s *Session) PublishObjectClass(class hla.ObjectClassHandle, _ []hla.AttributeHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.execution == "" {
		return hla.ErrNotJoined
	}
	s.published[class] = true
	return nil
}

func (s *Session) SubscribeInteractionClass(class hla.InteractionClassHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.execution == "" {
		return hla.ErrNotJoined
	}
	s.subscribedInt[class] = true
	return nil
}

func (s *Session) PublishInteractionClass(class hla.InteractionClassHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.execution == "" {
		return hla.ErrNotJoined
	}
	s.publishedInt[class] = true
	return nil
}

// RegisterObjectInstance announces a new object with an empty update so
// subscribers discover it. An empty name gets a generated one.
func (s *Session) RegisterObjectInstance(class hla.ObjectClassHandle, name string) (hla.ObjectHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.execution == "" {
		return 0, hla.ErrNotJoined
	}
	if !s.published[class] {
		return 0, fmt.Errorf("object class %d: %w", class, hla.ErrNotPublished)
	}
	if name == "" {
		name = uuid.NewString()
	}
	if err := s.publish(kindUpdate, s.objectSubject(class), class, name, nil, ""); err != nil {
		return 0, err
	}
	s.nextObject++
	h := hla.ObjectHandle(s.nextObject)
	s.owned[h] = instance{class: class, name: name}
	return h, nil
}

// DeleteObjectInstance removes an object this federate registered.
func (s *Session) DeleteObjectInstance(obj hla.ObjectHandle, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.execution == "" {
		return hla.ErrNotJoined
	}
	o, ok := s.owned[obj]
	if !ok {
		return fmt.Errorf("object %d: %w", obj, hla.ErrObjectNotKnown)
	}
	delete(s.owned, obj)
	return s.publish(kindRemove, s.objectSubject(o.class), o.class, o.name, nil, tag)
}

// UpdateAttributeValues publishes attrs of an owned object.
func (s *Session) UpdateAttributeValues(obj hla.ObjectHandle, attrs hla.AttributeValues, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.execution == "" {
		return hla.ErrNotJoined
	}
	o, ok := s.owned[obj]
	if !ok {
		return fmt.Errorf("object %d: %w", obj, hla.ErrObjectNotKnown)
	}
	values := make(map[string][]byte, len(attrs))
	for _, a := range attrs {
		name, err := s.fom.AttributeName(a.Handle, o.class)
		if err != nil {
			return err
		}
		values[name] = a.Value
	}
	return s.publish(kindUpdate, s.objectSubject(o.class), o.class, o.name, values, tag)
}

// SendInteraction publishes an interaction.
func (s *Session) SendInteraction(class hla.InteractionClassHandle, params hla.ParameterValues, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.execution == "" {
		return hla.ErrNotJoined
	}
	if !s.publishedInt[class] {
		return fmt.Errorf("interaction class %d: %w", class, hla.ErrNotPublished)
	}
	className, err := s.fom.InteractionClassName(class)
	if err != nil {
		return err
	}
	values := make(map[string][]byte, len(params))
	for _, p := range params {
		name, err := s.fom.ParameterName(p.Handle, class)
		if err != nil {
			return err
		}
		values[name] = p.Value
	}
	env := envelope{
		Kind:     kindInteraction,
		Sender:   s.id,
		Federate: s.federate,
		Class:    className,
		Values:   values,
		Tag:      tag,
	}
	return s.send(executionSubject(s.execution)+".interaction."+token(className), env)
}

// Tick delivers queued events on the calling goroutine.
func (s *Session) Tick() error {
	s.mu.Lock()
	if s.execution == "" {
		s.mu.Unlock()
		return hla.ErrNotJoined
	}
	events, handler := s.queue, s.handler
	s.queue = nil
	s.mu.Unlock()

	for _, e := range events {
		handler.HandleEvent(e)
	}
	return nil
}

// Pending returns the number of queued events.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// publish sends an object envelope. The caller holds s.mu.
func (s *Session) publish(kind, subject string, class hla.ObjectClassHandle, object string, values map[string][]byte, tag string) error {
	className, err := s.fom.ObjectClassName(class)
	if err != nil {
		return err
	}
	return s.send(subject, envelope{
		Kind:     kind,
		Sender:   s.id,
		Federate: s.federate,
		Class:    className,
		Object:   object,
		Values:   values,
		Tag:      tag,
	})
}

func (s *Session) send(subject string, env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding %s envelope: %w", env.Kind, err)
	}
	if err := s.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

func (s *Session) objectSubject(class hla.ObjectClassHandle) string {
	name, _ := s.fom.ObjectClassName(class)
	return executionSubject(s.execution) + ".object." + token(name)
}

// receive runs on the NATS delivery goroutine and only queues events.
func (s *Session) receive(msg *nats.Msg) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		s.logger.Warn("dropping malformed federation message", "subject", msg.Subject, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.execution == "" || env.Sender == s.id {
		return
	}
	switch env.Kind {
	case kindUpdate:
		s.receiveUpdate(env)
	case kindRemove:
		s.receiveRemove(env)
	case kindInteraction:
		s.receiveInteraction(env)
	default:
		s.logger.Warn("unknown federation message kind", "subject", msg.Subject, "kind", env.Kind)
	}
}

func (s *Session) receiveUpdate(env envelope) {
	class, err := s.fom.ObjectClassHandle(env.Class)
	if err != nil {
		return
	}
	sub, ok := s.subscribed[class]
	if !ok {
		return
	}

	var values hla.AttributeValues
	for name, v := range env.Values {
		h, err := s.fom.AttributeHandle(name, class)
		if err != nil || !sub[h] {
			continue
		}
		values = append(values, hla.AttributeValue{Handle: h, Value: v})
	}

	obj, known := s.byName[env.Object]
	if !known {
		s.nextObject++
		obj = hla.ObjectHandle(s.nextObject)
		s.byName[env.Object] = obj
		s.remote[obj] = instance{class: class, name: env.Object}
		s.queue = append(s.queue, hla.Event{
			Kind:        hla.EventObjectDiscovered,
			Object:      obj,
			ObjectClass: class,
			ObjectName:  env.Object,
		})
	}
	if len(values) == 0 {
		return
	}
	s.queue = append(s.queue, hla.Event{
		Kind:        hla.EventAttributesReflected,
		Object:      obj,
		ObjectClass: class,
		Attributes:  values,
		Tag:         env.Tag,
	})
}

func (s *Session) receiveRemove(env envelope) {
	obj, ok := s.byName[env.Object]
	if !ok {
		return
	}
	o := s.remote[obj]
	delete(s.byName, env.Object)
	delete(s.remote, obj)
	s.queue = append(s.queue, hla.Event{
		Kind:        hla.EventObjectRemoved,
		Object:      obj,
		ObjectClass: o.class,
		Tag:         env.Tag,
	})
}

func (s *Session) receiveInteraction(env envelope) {
	class, err := s.fom.InteractionClassHandle(env.Class)
	if err != nil || !s.subscribedInt[class] {
		return
	}
	params := make(hla.ParameterValues, 0, len(env.Values))
	for name, v := range env.Values {
		h, err := s.fom.ParameterHandle(name, class)
		if err != nil {
			continue
		}
		params = append(params, hla.ParameterValue{Handle: h, Value: v})
	}
	s.queue = append(s.queue, hla.Event{
		Kind:        hla.EventInteractionReceived,
		Interaction: class,
		Parameters:  params,
		Tag:         env.Tag,
	})
}

func executionSubject(execution string) string {
	return subjectPrefix + "." + strings.ReplaceAll(token(execution), ".", "_")
}

// token makes a name usable inside a subject. Dots in class names are kept
// since they only add subject levels.
func token(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '*', '>':
			return '_'
		}
		return r
	}, name)
}
