// Package mapping holds the declarations that tie federation object and
// interaction classes to application actor and message types.
package mapping

import (
	"github.com/OCAP2/hlabridge/pkg/core"
	"github.com/OCAP2/hlabridge/pkg/hla"
	"github.com/OCAP2/hlabridge/pkg/rpr"
)

// Reserved application field names. A field mapped to one of these carries
// the message's about/sending actor id instead of a message parameter.
const (
	AboutActorIDParameter   = "aboutActorId"
	SendingActorIDParameter = "sendingActorId"
)

// EntityTypeAttributeName is the object attribute carrying the DIS entity type.
const EntityTypeAttributeName = "EntityType"

// ParameterDefinition describes one application field fed by a wire field.
type ParameterDefinition struct {
	Name     string
	Type     core.DataType
	Default  string
	Required bool

	toApp  map[string]string
	toWire map[string]string
	order  []string
}

// IsReserved reports whether the definition targets one of the message
// actor id fields.
func (d *ParameterDefinition) IsReserved() bool {
	return d.Name == AboutActorIDParameter || d.Name == SendingActorIDParameter
}

// AddEnumMapping maps a wire token to an application token in both
// directions. The first mapping registered for a token wins.
func (d *ParameterDefinition) AddEnumMapping(wire, app string) {
	if d.toApp == nil {
		d.toApp = make(map[string]string)
		d.toWire = make(map[string]string)
	}
	if _, ok := d.toApp[wire]; !ok {
		d.toApp[wire] = app
		d.order = append(d.order, wire)
	}
	if _, ok := d.toWire[app]; !ok {
		d.toWire[app] = wire
	}
}

// AppEnum returns the application token for a wire token.
func (d *ParameterDefinition) AppEnum(wire string) (string, bool) {
	v, ok := d.toApp[wire]
	return v, ok
}

// WireEnum returns the wire token for an application token.
func (d *ParameterDefinition) WireEnum(app string) (string, bool) {
	v, ok := d.toWire[app]
	return v, ok
}

// EnumMappings returns wire to application pairs in registration order.
func (d *ParameterDefinition) EnumMappings() [][2]string {
	out := make([][2]string, 0, len(d.order))
	for _, w := range d.order {
		out = append(out, [2]string{w, d.toApp[w]})
	}
	return out
}

// Codec translates a field between wire bytes and application parameters.
// params is index aligned with FieldMapping.Definitions.
type Codec interface {
	Encode(f *FieldMapping, params []*core.Parameter) ([]byte, error)
	Decode(f *FieldMapping, buf []byte, params []*core.Parameter) error
}

// FieldMapping maps one wire field onto one or more application fields.
// Definitions[0] is the primary field.
type FieldMapping struct {
	Name        string
	Type        *rpr.AttributeType
	Required    bool
	Definitions []ParameterDefinition

	// Invalid is set once translation of the field failed in a way that
	// will not recover; the field is skipped afterwards.
	Invalid bool

	Codec Codec
}

// RequiredForApp reports whether any application field must always be set.
func (f *FieldMapping) RequiredForApp() bool {
	for i := range f.Definitions {
		if f.Definitions[i].Required {
			return true
		}
	}
	return false
}

// AttributeMapping is a FieldMapping for an object attribute.
type AttributeMapping struct {
	FieldMapping
	Handle hla.AttributeHandle
}

// ParameterMapping is a FieldMapping for an interaction parameter.
type ParameterMapping struct {
	FieldMapping
	Handle hla.ParameterHandle
}

// ObjectToActor maps a federation object class onto an application actor type.
type ObjectToActor struct {
	ObjectClassName string
	ObjectClass     hla.ObjectClassHandle
	ActorType       core.ActorType
	Attributes      []*AttributeMapping

	EntityIDAttributeName string
	EntityIDAttribute     hla.AttributeHandle

	// DISType selects this mapping among others for the same class.
	DISType             *rpr.EntityType
	EntityTypeAttribute hla.AttributeHandle

	// RemoteOnly mappings are only used for objects owned by other federates.
	RemoteOnly bool
}

// EntityType returns the configured DIS type, or the all-wildcard type.
func (m *ObjectToActor) EntityType() rpr.EntityType {
	if m.DISType == nil {
		return rpr.EntityType{}
	}
	return *m.DISType
}

// Attribute returns the attribute mapping for a wire name.
func (m *ObjectToActor) Attribute(name string) *AttributeMapping {
	for _, a := range m.Attributes {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// InteractionToMessage maps a federation interaction class onto an
// application message type.
type InteractionToMessage struct {
	InteractionClassName string
	InteractionClass     hla.InteractionClassHandle
	MessageType          core.MessageType
	Parameters           []*ParameterMapping
}
