// Package hla defines the federation session the bridge runs on: handle
// types, attribute and parameter payloads, inbound events and the session
// operations. Implementations live under internal/rti.
package hla

import (
	"errors"
	"fmt"
)

// Handles assigned by the session. Zero is never a valid handle.
type (
	ObjectClassHandle      uint32
	AttributeHandle        uint32
	InteractionClassHandle uint32
	ParameterHandle        uint32
	ObjectHandle           uint32
)

// Sentinel session errors, matched with errors.Is.
var (
	ErrNameNotFound                     = errors.New("name not found")
	ErrNotJoined                        = errors.New("federate not joined")
	ErrAlreadyJoined                    = errors.New("federate already joined")
	ErrFederationExecutionAlreadyExists = errors.New("federation execution already exists")
	ErrFederationExecutionDoesNotExist  = errors.New("federation execution does not exist")
	ErrFederatesCurrentlyJoined         = errors.New("federates currently joined")
	ErrObjectNotKnown                   = errors.New("object not known")
	ErrNotPublished                     = errors.New("class not published")
	ErrInvalidHandle                    = errors.New("invalid handle")
)

// AttributeValue is one attribute in an update or reflection.
type AttributeValue struct {
	Handle AttributeHandle
	Value  []byte
}

// AttributeValues is an ordered attribute payload.
type AttributeValues []AttributeValue

// Find returns the value for h.
func (a AttributeValues) Find(h AttributeHandle) ([]byte, bool) {
	for _, v := range a {
		if v.Handle == h {
			return v.Value, true
		}
	}
	return nil, false
}

// ParameterValue is one parameter of an interaction.
type ParameterValue struct {
	Handle ParameterHandle
	Value  []byte
}

// ParameterValues is an ordered parameter payload.
type ParameterValues []ParameterValue

// Find returns the value for h.
func (p ParameterValues) Find(h ParameterHandle) ([]byte, bool) {
	for _, v := range p {
		if v.Handle == h {
			return v.Value, true
		}
	}
	return nil, false
}

// EventKind enumerates inbound federation callbacks.
type EventKind uint8

const (
	EventObjectDiscovered EventKind = iota + 1
	EventAttributesReflected
	EventObjectRemoved
	EventInteractionReceived
)

func (k EventKind) String() string {
	switch k {
	case EventObjectDiscovered:
		return "ObjectDiscovered"
	case EventAttributesReflected:
		return "AttributesReflected"
	case EventObjectRemoved:
		return "ObjectRemoved"
	case EventInteractionReceived:
		return "InteractionReceived"
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

// Event is an inbound callback. Which fields are set depends on Kind.
type Event struct {
	Kind        EventKind
	Object      ObjectHandle
	ObjectClass ObjectClassHandle
	ObjectName  string
	Attributes  AttributeValues
	Interaction InteractionClassHandle
	Parameters  ParameterValues
	Tag         string
}

// EventHandler receives inbound events during Session.Tick.
type EventHandler interface {
	HandleEvent(Event)
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(Event)

// HandleEvent calls f(e).
func (f EventHandlerFunc) HandleEvent(e Event) { f(e) }

// Session is a federate's connection to a federation execution. Inbound
// events are only delivered from Tick, on the calling goroutine.
type Session interface {
	CreateFederationExecution(execution, fomFile string) error
	DestroyFederationExecution(execution string) error
	JoinFederationExecution(federate, execution string, handler EventHandler) error
	ResignFederationExecution() error

	ObjectClassHandle(name string) (ObjectClassHandle, error)
	ObjectClassName(h ObjectClassHandle) (string, error)
	AttributeHandle(name string, class ObjectClassHandle) (AttributeHandle, error)
	AttributeName(h AttributeHandle, class ObjectClassHandle) (string, error)
	InteractionClassHandle(name string) (InteractionClassHandle, error)
	InteractionClassName(h InteractionClassHandle) (string, error)
	ParameterHandle(name string, class InteractionClassHandle) (ParameterHandle, error)
	ObjectClassOf(obj ObjectHandle) (ObjectClassHandle, error)

	SubscribeObjectClassAttributes(class ObjectClassHandle, attrs []AttributeHandle) error
	PublishObjectClass(class ObjectClassHandle, attrs []AttributeHandle) error
	SubscribeInteractionClass(class InteractionClassHandle) error
	PublishInteractionClass(class InteractionClassHandle) error

	RegisterObjectInstance(class ObjectClassHandle, name string) (ObjectHandle, error)
	DeleteObjectInstance(obj ObjectHandle, tag string) error
	UpdateAttributeValues(obj ObjectHandle, attrs AttributeValues, tag string) error
	SendInteraction(class InteractionClassHandle, params ParameterValues, tag string) error

	Tick() error
}
