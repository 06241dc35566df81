// Package memrti is an in-process federation: every session created from
// the same Hub takes part in the same set of federation executions.
// Events are queued per session and delivered from Session.Tick.
package memrti

import (
	"fmt"
	"slices"
	"sync"

	"github.com/OCAP2/hlabridge/internal/rti"
	"github.com/OCAP2/hlabridge/pkg/hla"
)

type object struct {
	handle     hla.ObjectHandle
	class      hla.ObjectClassHandle
	name       string
	owner      *Session
	discovered map[*Session]bool
}

type execution struct {
	name    string
	members []*Session
	objects map[hla.ObjectHandle]*object
}

// Hub owns the object model and the executions shared by its sessions.
type Hub struct {
	fom *rti.FOM

	mu         sync.Mutex
	executions map[string]*execution
	nextObject uint32
}

// NewHub creates a hub resolving names against fom.
func NewHub(fom *rti.FOM) *Hub {
	return &Hub{fom: fom, executions: make(map[string]*execution)}
}

// FOM returns the hub's object model.
func (h *Hub) FOM() *rti.FOM {
	return h.fom
}

// NewSession creates an unjoined session on the hub.
func (h *Hub) NewSession() *Session {
	return &Session{hub: h}
}

// Session is one federate's connection to the hub. It implements hla.Session.
type Session struct {
	hub *Hub

	// guarded by hub.mu
	exec          *execution
	name          string
	handler       hla.EventHandler
	queue         []hla.Event
	subscribed    map[hla.ObjectClassHandle]map[hla.AttributeHandle]bool
	published     map[hla.ObjectClassHandle]bool
	subscribedInt map[hla.InteractionClassHandle]bool
	publishedInt  map[hla.InteractionClassHandle]bool
}

var _ hla.Session = (*Session)(nil)

// CreateFederationExecution creates an execution. The model file is not
// read; the hub's object model applies to every execution.
func (s *Session) CreateFederationExecution(name, _ string) error {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.executions[name]; ok {
		return fmt.Errorf("%s: %w", name, hla.ErrFederationExecutionAlreadyExists)
	}
	h.executions[name] = &execution{name: name, objects: make(map[hla.ObjectHandle]*object)}
	return nil
}

// DestroyFederationExecution removes an execution nobody is joined to.
func (s *Session) DestroyFederationExecution(name string) error {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.executions[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, hla.ErrFederationExecutionDoesNotExist)
	}
	if len(e.members) > 0 {
		return fmt.Errorf("%s: %w", name, hla.ErrFederatesCurrentlyJoined)
	}
	delete(h.executions, name)
	return nil
}

// JoinFederationExecution joins an existing execution.
func (s *Session) JoinFederationExecution(federate, name string, handler hla.EventHandler) error {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.exec != nil {
		return fmt.Errorf("%s: %w", federate, hla.ErrAlreadyJoined)
	}
	e, ok := h.executions[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, hla.ErrFederationExecutionDoesNotExist)
	}
	s.exec = e
	s.name = federate
	s.handler = handler
	s.queue = nil
	s.subscribed = make(map[hla.ObjectClassHandle]map[hla.AttributeHandle]bool)
	s.published = make(map[hla.ObjectClassHandle]bool)
	s.subscribedInt = make(map[hla.InteractionClassHandle]bool)
	s.publishedInt = make(map[hla.InteractionClassHandle]bool)
	e.members = append(e.members, s)
	return nil
}

// ResignFederationExecution leaves the execution, deleting the objects the
// federate registered.
func (s *Session) ResignFederationExecution() error {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.exec == nil {
		return hla.ErrNotJoined
	}
	e := s.exec
	for oh, o := range e.objects {
		if o.owner == s {
			h.removeObject(e, o, "resigned")
			delete(e.objects, oh)
		}
		delete(o.discovered, s)
	}
	e.members = slices.DeleteFunc(e.members, func(m *Session) bool { return m == s })
	s.exec = nil
	s.handler = nil
	s.queue = nil
	return nil
}

func (s *Session) ObjectClassHandle(name string) (hla.ObjectClassHandle, error) {
	return s.hub.fom.ObjectClassHandle(name)
}

func (s *Session) ObjectClassName(h hla.ObjectClassHandle) (string, error) {
	return s.hub.fom.ObjectClassName(h)
}

func (s *Session) AttributeHandle(name string, class hla.ObjectClassHandle) (hla.AttributeHandle, error) {
	return s.hub.fom.AttributeHandle(name, class)
}

func (s *Session) AttributeName(h hla.AttributeHandle, class hla.ObjectClassHandle) (string, error) {
	return s.hub.fom.AttributeName(h, class)
}

func (s *Session) InteractionClassHandle(name string) (hla.InteractionClassHandle, error) {
	return s.hub.fom.InteractionClassHandle(name)
}

func (s *Session) InteractionClassName(h hla.InteractionClassHandle) (string, error) {
	return s.hub.fom.InteractionClassName(h)
}

func (s *Session) ParameterHandle(name string, class hla.InteractionClassHandle) (hla.ParameterHandle, error) {
	return s.hub.fom.ParameterHandle(name, class)
}

// ObjectClassOf returns the registered class of an object instance.
func (s *Session) ObjectClassOf(obj hla.ObjectHandle) (hla.ObjectClassHandle, error) {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.exec == nil {
		return 0, hla.ErrNotJoined
	}
	o, ok := s.exec.objects[obj]
	if !ok {
		return 0, fmt.Errorf("object %d: %w", obj, hla.ErrObjectNotKnown)
	}
	return o.class, nil
}

// SubscribeObjectClassAttributes adds attributes to the class subscription.
func (s *Session) SubscribeObjectClassAttributes(class hla.ObjectClassHandle, attrs []hla.AttributeHandle) error {
	if _, err := s.hub.fom.ObjectClassName(class); err != nil {
		return err
	}
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.exec == nil {
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

// PublishObjectClass allows the federate to register instances of class.
func (s *Session) PublishObjectClass(class hla.ObjectClassHandle, _ []hla.AttributeHandle) error {
	if _, err := s.hub.fom.ObjectClassName(class); err != nil {
		return err
	}
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.exec == nil {
		return hla.ErrNotJoined
	}
	s.published[class] = true
	return nil
}

func (s *Session) SubscribeInteractionClass(class hla.InteractionClassHandle) error {
	if _, err := s.hub.fom.InteractionClassName(class); err != nil {
		return err
	}
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.exec == nil {
		return hla.ErrNotJoined
	}
	s.subscribedInt[class] = true
	return nil
}

func (s *Session) PublishInteractionClass(class hla.InteractionClassHandle) error {
	if _, err := s.hub.fom.InteractionClassName(class); err != nil {
		return err
	}
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.exec == nil {
		return hla.ErrNotJoined
	}
	s.publishedInt[class] = true
	return nil
}

// RegisterObjectInstance creates an object of a published class.
// Subscribers discover it immediately.
func (s *Session) RegisterObjectInstance(class hla.ObjectClassHandle, name string) (hla.ObjectHandle, error) {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.exec == nil {
		return 0, hla.ErrNotJoined
	}
	if !s.published[class] {
		return 0, fmt.Errorf("object class %d: %w", class, hla.ErrNotPublished)
	}
	h.nextObject++
	o := &object{
		handle:     hla.ObjectHandle(h.nextObject),
		class:      class,
		name:       name,
		owner:      s,
		discovered: make(map[*Session]bool),
	}
	s.exec.objects[o.handle] = o
	for _, m := range s.exec.members {
		if m != s {
			if _, ok := m.subscribed[class]; ok {
				h.discover(m, o)
			}
		}
	}
	return o.handle, nil
}

// DeleteObjectInstance removes an owned object. Every federate that
// discovered it gets an ObjectRemoved event.
func (s *Session) DeleteObjectInstance(obj hla.ObjectHandle, tag string) error {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.exec == nil {
		return hla.ErrNotJoined
	}
	o, ok := s.exec.objects[obj]
	if !ok || o.owner != s {
		return fmt.Errorf("object %d: %w", obj, hla.ErrObjectNotKnown)
	}
	h.removeObject(s.exec, o, tag)
	delete(s.exec.objects, obj)
	return nil
}

// UpdateAttributeValues reflects the subscribed subset of attrs to every
// other subscriber of the object's class.
func (s *Session) UpdateAttributeValues(obj hla.ObjectHandle, attrs hla.AttributeValues, tag string) error {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.exec == nil {
		return hla.ErrNotJoined
	}
	o, ok := s.exec.objects[obj]
	if !ok || o.owner != s {
		return fmt.Errorf("object %d: %w", obj, hla.ErrObjectNotKnown)
	}
	for _, m := range s.exec.members {
		if m == s {
			continue
		}
		sub, ok := m.subscribed[o.class]
		if !ok {
			continue
		}
		var values hla.AttributeValues
		for _, a := range attrs {
			if sub[a.Handle] {
				values = append(values, hla.AttributeValue{Handle: a.Handle, Value: slices.Clone(a.Value)})
			}
		}
		if len(values) == 0 {
			continue
		}
		if !o.discovered[m] {
			h.discover(m, o)
		}
		m.queue = append(m.queue, hla.Event{
			Kind:        hla.EventAttributesReflected,
			Object:      o.handle,
			ObjectClass: o.class,
			Attributes:  values,
			Tag:         tag,
		})
	}
	return nil
}

// SendInteraction delivers an interaction to every other subscriber.
func (s *Session) SendInteraction(class hla.InteractionClassHandle, params hla.ParameterValues, tag string) error {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.exec == nil {
		return hla.ErrNotJoined
	}
	if !s.publishedInt[class] {
		return fmt.Errorf("interaction class %d: %w", class, hla.ErrNotPublished)
	}
	for _, m := range s.exec.members {
		if m == s || !m.subscribedInt[class] {
			continue
		}
		values := make(hla.ParameterValues, len(params))
		for i, p := range params {
			values[i] = hla.ParameterValue{Handle: p.Handle, Value: slices.Clone(p.Value)}
		}
		m.queue = append(m.queue, hla.Event{
			Kind:        hla.EventInteractionReceived,
			Interaction: class,
			Parameters:  values,
			Tag:         tag,
		})
	}
	return nil
}

// Tick delivers every queued event to the handler on the calling goroutine.
// Events queued while delivering are left for the next tick.
func (s *Session) Tick() error {
	h := s.hub
	h.mu.Lock()
	if s.exec == nil {
		h.mu.Unlock()
		return hla.ErrNotJoined
	}
	events, handler := s.queue, s.handler
	s.queue = nil
	h.mu.Unlock()

	for _, e := range events {
		handler.HandleEvent(e)
	}
	return nil
}

// Pending returns the number of queued events.
func (s *Session) Pending() int {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return len(s.queue)
}

func (h *Hub) discover(m *Session, o *object) {
	o.discovered[m] = true
	m.queue = append(m.queue, hla.Event{
		Kind:        hla.EventObjectDiscovered,
		Object:      o.handle,
		ObjectClass: o.class,
		ObjectName:  o.name,
	})
}

func (h *Hub) removeObject(e *execution, o *object, tag string) {
	for _, m := range e.members {
		if o.discovered[m] {
			m.queue = append(m.queue, hla.Event{
				Kind:        hla.EventObjectRemoved,
				Object:      o.handle,
				ObjectClass: o.class,
				Tag:         tag,
			})
		}
	}
}
