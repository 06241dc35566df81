// Package rti holds what the federation session adapters share: the object
// model handle table and the RPR-FOM subset the bridge ships with.
package rti

import (
	"fmt"
	"sync"

	"github.com/OCAP2/hlabridge/pkg/hla"
)

// ObjectClass is an object class with its attribute handles.
type ObjectClass struct {
	Name       string
	Handle     hla.ObjectClassHandle
	attributes map[string]hla.AttributeHandle
	names      map[hla.AttributeHandle]string
}

// InteractionClass is an interaction class with its parameter handles.
type InteractionClass struct {
	Name       string
	Handle     hla.InteractionClassHandle
	parameters map[string]hla.ParameterHandle
	names      map[hla.ParameterHandle]string
}

// FOM assigns handles to object model names. A dynamic FOM defines any
// class, attribute or parameter the first time its name is looked up.
type FOM struct {
	mu      sync.RWMutex
	dynamic bool
	next    uint32

	objects        map[string]*ObjectClass
	objectHandles  map[hla.ObjectClassHandle]*ObjectClass
	interactions   map[string]*InteractionClass
	interactionsBy map[hla.InteractionClassHandle]*InteractionClass
}

// NewFOM creates an empty object model. Lookups of undefined names fail.
func NewFOM() *FOM {
	return &FOM{
		objects:        make(map[string]*ObjectClass),
		objectHandles:  make(map[hla.ObjectClassHandle]*ObjectClass),
		interactions:   make(map[string]*InteractionClass),
		interactionsBy: make(map[hla.InteractionClassHandle]*InteractionClass),
	}
}

// NewDynamicFOM creates an object model that defines names on lookup.
func NewDynamicFOM() *FOM {
	f := NewFOM()
	f.dynamic = true
	return f
}

func (f *FOM) handle() uint32 {
	f.next++
	return f.next
}

// DefineObjectClass adds a class, or extends it with more attributes.
func (f *FOM) DefineObjectClass(name string, attributes ...string) hla.ObjectClassHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.defineObjectClass(name, attributes...).Handle
}

func (f *FOM) defineObjectClass(name string, attributes ...string) *ObjectClass {
	c, ok := f.objects[name]
	if !ok {
		c = &ObjectClass{
			Name:       name,
			Handle:     hla.ObjectClassHandle(f.handle()),
			attributes: make(map[string]hla.AttributeHandle),
			names:      make(map[hla.AttributeHandle]string),
		}
		f.objects[name] = c
		f.objectHandles[c.Handle] = c
	}
	for _, a := range attributes {
		if _, ok := c.attributes[a]; ok {
			continue
		}
		h := hla.AttributeHandle(f.handle())
		c.attributes[a] = h
		c.names[h] = a
	}
	return c
}

// DefineInteractionClass adds an interaction class, or extends it with
// more parameters.
func (f *FOM) DefineInteractionClass(name string, parameters ...string) hla.InteractionClassHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.defineInteractionClass(name, parameters...).Handle
}

func (f *FOM) defineInteractionClass(name string, parameters ...string) *InteractionClass {
	c, ok := f.interactions[name]
	if !ok {
		c = &InteractionClass{
			Name:       name,
			Handle:     hla.InteractionClassHandle(f.handle()),
			parameters: make(map[string]hla.ParameterHandle),
			names:      make(map[hla.ParameterHandle]string),
		}
		f.interactions[name] = c
		f.interactionsBy[c.Handle] = c
	}
	for _, p := range parameters {
		if _, ok := c.parameters[p]; ok {
			continue
		}
		h := hla.ParameterHandle(f.handle())
		c.parameters[p] = h
		c.names[h] = p
	}
	return c
}

// ObjectClassHandle resolves an object class name.
func (f *FOM) ObjectClassHandle(name string) (hla.ObjectClassHandle, error) {
	if f.dynamic {
		return f.DefineObjectClass(name), nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.objects[name]
	if !ok {
		return 0, fmt.Errorf("object class %s: %w", name, hla.ErrNameNotFound)
	}
	return c.Handle, nil
}

// ObjectClassName resolves an object class handle.
func (f *FOM) ObjectClassName(h hla.ObjectClassHandle) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.objectHandles[h]
	if !ok {
		return "", fmt.Errorf("object class %d: %w", h, hla.ErrInvalidHandle)
	}
	return c.Name, nil
}

// AttributeHandle resolves an attribute name within a class.
func (f *FOM) AttributeHandle(name string, class hla.ObjectClassHandle) (hla.AttributeHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.objectHandles[class]
	if !ok {
		return 0, fmt.Errorf("object class %d: %w", class, hla.ErrInvalidHandle)
	}
	if h, ok := c.attributes[name]; ok {
		return h, nil
	}
	if f.dynamic {
		return f.defineObjectClass(c.Name, name).attributes[name], nil
	}
	return 0, fmt.Errorf("attribute %s of %s: %w", name, c.Name, hla.ErrNameNotFound)
}

// AttributeName resolves an attribute handle within a class.
func (f *FOM) AttributeName(h hla.AttributeHandle, class hla.ObjectClassHandle) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.objectHandles[class]
	if !ok {
		return "", fmt.Errorf("object class %d: %w", class, hla.ErrInvalidHandle)
	}
	name, ok := c.names[h]
	if !ok {
		return "", fmt.Errorf("attribute %d of %s: %w", h, c.Name, hla.ErrInvalidHandle)
	}
	return name, nil
}

// InteractionClassHandle resolves an interaction class name.
func (f *FOM) InteractionClassHandle(name string) (hla.InteractionClassHandle, error) {
	if f.dynamic {
		return f.DefineInteractionClass(name), nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.interactions[name]
	if !ok {
		return 0, fmt.Errorf("interaction class %s: %w", name, hla.ErrNameNotFound)
	}
	return c.Handle, nil
}

// InteractionClassName resolves an interaction class handle.
func (f *FOM) InteractionClassName(h hla.InteractionClassHandle) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.interactionsBy[h]
	if !ok {
		return "", fmt.Errorf("interaction class %d: %w", h, hla.ErrInvalidHandle)
	}
	return c.Name, nil
}

// ParameterHandle resolves a parameter name within an interaction class.
func (f *FOM) ParameterHandle(name string, class hla.InteractionClassHandle) (hla.ParameterHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.interactionsBy[class]
	if !ok {
		return 0, fmt.Errorf("interaction class %d: %w", class, hla.ErrInvalidHandle)
	}
	if h, ok := c.parameters[name]; ok {
		return h, nil
	}
	if f.dynamic {
		return f.defineInteractionClass(c.Name, name).parameters[name], nil
	}
	return 0, fmt.Errorf("parameter %s of %s: %w", name, c.Name, hla.ErrNameNotFound)
}

// ParameterName resolves a parameter handle within an interaction class.
func (f *FOM) ParameterName(h hla.ParameterHandle, class hla.InteractionClassHandle) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.interactionsBy[class]
	if !ok {
		return "", fmt.Errorf("interaction class %d: %w", class, hla.ErrInvalidHandle)
	}
	name, ok := c.names[h]
	if !ok {
		return "", fmt.Errorf("parameter %d of %s: %w", h, c.Name, hla.ErrInvalidHandle)
	}
	return name, nil
}

// ObjectClasses returns the defined object class names with their attributes.
func (f *FOM) ObjectClasses() map[string][]string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string][]string, len(f.objects))
	for name, c := range f.objects {
		attrs := make([]string, 0, len(c.attributes))
		for a := range c.attributes {
			attrs = append(attrs, a)
		}
		out[name] = attrs
	}
	return out
}
