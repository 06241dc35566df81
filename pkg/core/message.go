// pkg/core/message.go
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MessageType names an application message.
type MessageType string

// Actor lifecycle message types. Every other type is a generic message
// carried to or from an interaction class.
const (
	ActorCreated MessageType = "ActorCreated"
	ActorUpdated MessageType = "ActorUpdated"
	ActorDeleted MessageType = "ActorDeleted"
)

// IsActorLifecycle reports whether t is one of the actor lifecycle types.
func (t MessageType) IsActorLifecycle() bool {
	return t == ActorCreated || t == ActorUpdated || t == ActorDeleted
}

// ErrDuplicateParameter is returned when a parameter name is added twice.
var ErrDuplicateParameter = errors.New("duplicate message parameter")

// Parameter is a named, typed message field.
type Parameter struct {
	Name  string   `json:"name"`
	Type  DataType `json:"type"`
	Value any      `json:"value"`
}

// IsSet reports whether a value has been assigned.
func (p *Parameter) IsSet() bool {
	return p != nil && p.Value != nil
}

// Set converts v to the parameter's type and stores it.
func (p *Parameter) Set(v any) error {
	cv, err := ConvertValue(p.Type, v)
	if err != nil {
		return fmt.Errorf("parameter %s: %w", p.Name, err)
	}
	p.Value = cv
	return nil
}

// UnmarshalJSON decodes the value according to the declared type.
func (p *Parameter) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name  string   `json:"name"`
		Type  DataType `json:"type"`
		Value any      `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Name = raw.Name
	p.Type = raw.Type
	p.Value = nil
	if raw.Value == nil {
		return nil
	}
	return p.Set(raw.Value)
}

// Message is an application message: an actor lifecycle notification or a
// generic named message with ordered parameters.
type Message struct {
	Type           MessageType
	ActorType      ActorType
	AboutActorID   ActorID
	SendingActorID ActorID
	Time           time.Time

	params []*Parameter
	index  map[string]int
}

// NewMessage creates an empty message of the given type.
func NewMessage(t MessageType) *Message {
	return &Message{
		Type:  t,
		Time:  time.Now(),
		index: make(map[string]int),
	}
}

// Param returns the named parameter or nil.
func (m *Message) Param(name string) *Parameter {
	if i, ok := m.index[name]; ok {
		return m.params[i]
	}
	return nil
}

// AddParam adds an unset parameter. It fails if the name is taken.
func (m *Message) AddParam(name string, dt DataType) (*Parameter, error) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if _, ok := m.index[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateParameter, name)
	}
	p := &Parameter{Name: name, Type: dt}
	m.index[name] = len(m.params)
	m.params = append(m.params, p)
	return p, nil
}

// SetParam sets (adding if needed) a parameter to v converted to dt.
func (m *Message) SetParam(name string, dt DataType, v any) error {
	p := m.Param(name)
	if p == nil {
		var err error
		if p, err = m.AddParam(name, dt); err != nil {
			return err
		}
	}
	p.Type = dt
	return p.Set(v)
}

// RemoveParam deletes a parameter by name.
func (m *Message) RemoveParam(name string) {
	i, ok := m.index[name]
	if !ok {
		return
	}
	m.params = append(m.params[:i], m.params[i+1:]...)
	delete(m.index, name)
	for j := i; j < len(m.params); j++ {
		m.index[m.params[j].Name] = j
	}
}

// Params returns the parameters in insertion order.
func (m *Message) Params() []*Parameter {
	return m.params
}

// Values returns a name to value map of all set parameters.
func (m *Message) Values() map[string]any {
	out := make(map[string]any, len(m.params))
	for _, p := range m.params {
		if p.IsSet() {
			out[p.Name] = p.Value
		}
	}
	return out
}

type messageJSON struct {
	Type           MessageType  `json:"type"`
	ActorType      string       `json:"actorType,omitempty"`
	AboutActorID   ActorID      `json:"aboutActorId,omitempty"`
	SendingActorID ActorID      `json:"sendingActorId,omitempty"`
	Time           time.Time    `json:"time"`
	Params         []*Parameter `json:"params,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m *Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{
		Type:           m.Type,
		AboutActorID:   m.AboutActorID,
		SendingActorID: m.SendingActorID,
		Time:           m.Time,
		Params:         m.params,
	}
	if !m.ActorType.IsZero() {
		out.ActorType = m.ActorType.String()
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Message) UnmarshalJSON(data []byte) error {
	var in messageJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*m = *NewMessage(in.Type)
	if in.ActorType != "" {
		m.ActorType = ParseActorType(in.ActorType)
	}
	m.AboutActorID = in.AboutActorID
	m.SendingActorID = in.SendingActorID
	if !in.Time.IsZero() {
		m.Time = in.Time
	}
	for _, p := range in.Params {
		if p == nil {
			continue
		}
		if _, ok := m.index[p.Name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateParameter, p.Name)
		}
		m.index[p.Name] = len(m.params)
		m.params = append(m.params, p)
	}
	return nil
}
