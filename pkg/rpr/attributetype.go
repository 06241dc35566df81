// Package rpr holds the RPR-FOM wire primitives: the attribute type table
// and the fixed-layout DIS structures carried in attribute and parameter
// values. All multi-byte fields are big-endian on the wire.
package rpr

import "fmt"

// Kind is the closed set of wire encodings the codec understands.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindWorldCoordinate
	KindEulerAngles
	KindVelocityVector
	KindUnsignedInt
	KindUnsignedShort
	KindUnsignedChar
	KindDouble
	KindFloat
	KindEntityType
	KindEntityIdentifier
	KindEventIdentifier
	KindMarking
	KindString
)

// Attribute type names as they appear in mapping configuration.
const (
	WorldCoordinateType  = "WORLD_COORDINATE_TYPE"
	EulerAnglesType      = "EULER_ANGLES_TYPE"
	VelocityVectorType   = "VELOCITY_VECTOR_TYPE"
	UnsignedIntType      = "UNSIGNED_INT_TYPE"
	UnsignedShortType    = "UNSIGNED_SHORT_TYPE"
	UnsignedCharType     = "UNSIGNED_CHAR_TYPE"
	DoubleType           = "DOUBLE_TYPE"
	FloatType            = "FLOAT_TYPE"
	EntityTypeType       = "ENTITY_TYPE"
	EntityIdentifierType = "ENTITY_IDENTIFIER_TYPE"
	EventIdentifierType  = "EVENT_IDENTIFIER_TYPE"
	MarkingType          = "MARKING_TYPE"
	StringType           = "STRING_TYPE"
)

// AttributeType is an immutable wire type descriptor.
type AttributeType struct {
	name          string
	kind          Kind
	paramCount    int
	encodedLength int
}

func (t *AttributeType) Name() string                 { return t.name }
func (t *AttributeType) Kind() Kind                   { return t.kind }
func (t *AttributeType) SupportedParameterCount() int { return t.paramCount }

// EncodedLength is the fixed size in bytes, or the maximum size for
// variable length strings.
func (t *AttributeType) EncodedLength() int { return t.encodedLength }

// IsVariableLength reports whether the transmitted size may be shorter
// than EncodedLength.
func (t *AttributeType) IsVariableLength() bool { return t.kind == KindString }

func (t *AttributeType) String() string { return t.name }

// Registry is the table of attribute types. It is built once and never
// mutated, so a single instance may be shared freely.
type Registry struct {
	types  []*AttributeType
	byName map[string]*AttributeType
	byKind map[Kind]*AttributeType
}

// NewRegistry builds the RPR attribute type table.
func NewRegistry() *Registry {
	types := []*AttributeType{
		{WorldCoordinateType, KindWorldCoordinate, 1, 24},
		{EulerAnglesType, KindEulerAngles, 1, 12},
		{VelocityVectorType, KindVelocityVector, 1, 12},
		{UnsignedIntType, KindUnsignedInt, 1, 4},
		{UnsignedCharType, KindUnsignedChar, 1, 1},
		{UnsignedShortType, KindUnsignedShort, 1, 2},
		{FloatType, KindFloat, 1, 4},
		{DoubleType, KindDouble, 1, 8},
		{EntityTypeType, KindEntityType, 1, EntityTypeLength},
		{EntityIdentifierType, KindEntityIdentifier, 1, EntityIdentifierLength},
		{EventIdentifierType, KindEventIdentifier, 1, EventIdentifierLength},
		{MarkingType, KindMarking, 1, MarkingLength},
		{StringType, KindString, 1, 128},
	}
	r := &Registry{
		types:  types,
		byName: make(map[string]*AttributeType, len(types)),
		byKind: make(map[Kind]*AttributeType, len(types)),
	}
	for _, t := range types {
		r.byName[t.name] = t
		r.byKind[t.kind] = t
	}
	return r
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (*AttributeType, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// MustLookup is Lookup for names known at compile time.
func (r *Registry) MustLookup(name string) *AttributeType {
	t, ok := r.byName[name]
	if !ok {
		panic(fmt.Sprintf("rpr: unknown attribute type %q", name))
	}
	return t
}

// ForKind returns the type with the given encoding.
func (r *Registry) ForKind(k Kind) (*AttributeType, bool) {
	t, ok := r.byKind[k]
	return t, ok
}

// All returns the types in table order. The slice must not be modified.
func (r *Registry) All() []*AttributeType {
	return r.types
}
