// Package translator encodes application message parameters into RPR-FOM
// attribute and parameter values and decodes them back.
package translator

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/OCAP2/hlabridge/internal/geo"
	"github.com/OCAP2/hlabridge/internal/mapping"
	"github.com/OCAP2/hlabridge/pkg/core"
	"github.com/OCAP2/hlabridge/pkg/rpr"
)

var (
	// ErrUnsupported is returned for an application type the wire type
	// cannot carry.
	ErrUnsupported = errors.New("unsupported type combination")
	// ErrNoValue is returned when encoding a parameter that holds no value.
	ErrNoValue = errors.New("parameter has no value")
	// ErrNoEnumMapping is returned when neither a value nor the default has
	// a wire enumeration.
	ErrNoEnumMapping = errors.New("no enumeration mapping")
)

// IdentityLookup resolves entity identifiers carried in attribute values.
type IdentityLookup interface {
	ActorForEntity(id rpr.EntityIdentifier) (core.ActorID, bool)
	EntityForActor(actor core.ActorID) (rpr.EntityIdentifier, bool)
}

// CoordinateConverter maps positions and orientations between the local
// application frame and the federation frame.
type CoordinateConverter interface {
	ToRemoteTranslation(local core.Vec3) core.Vec3
	ToLocalTranslation(remote core.Vec3) core.Vec3
	ToRemoteRotation(local core.Vec3) core.Vec3
	ToLocalRotation(psi, theta, phi float64) core.Vec3
	OriginRotationMatrix() geo.Matrix3
	OriginRotationMatrixInverse() geo.Matrix3
}

// Translator owns one codec per wire kind. Codecs are bound to field
// mappings once, when the mappings are resolved against the federation.
type Translator struct {
	types  *rpr.Registry
	coords CoordinateConverter
	ids    IdentityLookup
	logger *slog.Logger

	codecs      map[rpr.Kind]mapping.Codec
	eventNumber uint16
}

// New creates a translator. coords and ids may not be nil.
func New(types *rpr.Registry, coords CoordinateConverter, ids IdentityLookup, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Translator{
		types:  types,
		coords: coords,
		ids:    ids,
		logger: logger,
	}
	t.codecs = map[rpr.Kind]mapping.Codec{
		rpr.KindWorldCoordinate:  worldCoordinateCodec{t},
		rpr.KindEulerAngles:      eulerAnglesCodec{t},
		rpr.KindVelocityVector:   velocityVectorCodec{t},
		rpr.KindUnsignedInt:      unsignedCodec{t, 4},
		rpr.KindUnsignedShort:    unsignedCodec{t, 2},
		rpr.KindUnsignedChar:     unsignedCodec{t, 1},
		rpr.KindDouble:           floatCodec{8},
		rpr.KindFloat:            floatCodec{4},
		rpr.KindEntityType:       entityTypeCodec{t},
		rpr.KindEntityIdentifier: entityIdentifierCodec{t},
		rpr.KindEventIdentifier:  eventIdentifierCodec{t},
		rpr.KindMarking:          markingCodec{t},
		rpr.KindString:           stringCodec{t},
	}
	return t
}

// Types returns the attribute type table the translator was built with.
func (t *Translator) Types() *rpr.Registry {
	return t.types
}

// ResetCounters restarts the event number sequence.
func (t *Translator) ResetCounters() {
	t.eventNumber = 0
}

// Bind selects the codec for a field mapping.
func (t *Translator) Bind(f *mapping.FieldMapping) error {
	if f.Type == nil {
		return fmt.Errorf("field %s: no attribute type", f.Name)
	}
	if len(f.Definitions) == 0 {
		return fmt.Errorf("field %s: no application parameters", f.Name)
	}
	c, ok := t.codecs[f.Type.Kind()]
	if !ok {
		return fmt.Errorf("field %s: %w: no codec for %s", f.Name, ErrUnsupported, f.Type)
	}
	if app := f.Definitions[0].Type; !accepts(f.Type.Kind(), app) {
		return fmt.Errorf("field %s: %w: %s to %s", f.Name, ErrUnsupported, app, f.Type.Name())
	}
	if n := f.Type.SupportedParameterCount(); len(f.Definitions) > n {
		t.logger.Warn("field maps more application parameters than the wire type carries",
			"field", f.Name, "type", f.Type.Name(), "parameters", len(f.Definitions), "supported", n)
	}
	f.Codec = c
	return nil
}

// Encode translates params into a wire value for f. It returns nil when the
// field cannot be encoded; the failure is logged.
func (t *Translator) Encode(f *mapping.FieldMapping, params []*core.Parameter) []byte {
	if f.Invalid {
		return nil
	}
	if f.Codec == nil {
		if err := t.Bind(f); err != nil {
			t.logger.Error("cannot encode field", "field", f.Name, "error", err)
			return nil
		}
	}
	if len(params) == 0 || params[0] == nil {
		t.logger.Error("cannot encode field", "field", f.Name, "error", ErrNoValue)
		return nil
	}
	buf, err := f.Codec.Encode(f, params)
	if err != nil {
		t.logger.Error("cannot encode field",
			"field", f.Name, "type", f.Type.Name(), "parameter", params[0].Name, "error", err)
		return nil
	}
	return buf
}

// Decode translates a wire value into params. Parameters that cannot be
// decoded are left unset; the failure is logged.
func (t *Translator) Decode(f *mapping.FieldMapping, buf []byte, params []*core.Parameter) {
	if f.Invalid {
		return
	}
	if f.Codec == nil {
		if err := t.Bind(f); err != nil {
			t.logger.Error("cannot decode field", "field", f.Name, "error", err)
			return
		}
	}
	if len(params) == 0 || params[0] == nil {
		return
	}
	if !f.Type.IsVariableLength() && len(buf) < f.Type.EncodedLength() {
		t.logger.Error("cannot decode field", "field", f.Name, "type", f.Type.Name(),
			"length", len(buf), "error", rpr.ErrShortBuffer)
		return
	}
	if err := f.Codec.Decode(f, buf, params); err != nil {
		t.logger.Error("cannot decode field",
			"field", f.Name, "type", f.Type.Name(), "parameter", params[0].Name, "error", err)
	}
}

// appEnum maps a wire token to the application token, falling back to the
// definition default.
func (t *Translator) appEnum(def *mapping.ParameterDefinition, wire string) string {
	if v, ok := def.AppEnum(wire); ok {
		return v
	}
	t.logger.Debug("no application enumeration for wire value, using default",
		"parameter", def.Name, "value", wire, "default", def.Default)
	return def.Default
}

// wireEnum maps an application token to the wire token, falling back to
// the wire token of the definition default.
func (t *Translator) wireEnum(def *mapping.ParameterDefinition, app string) (string, error) {
	if v, ok := def.WireEnum(app); ok {
		return v, nil
	}
	if v, ok := def.WireEnum(def.Default); ok {
		t.logger.Debug("no wire enumeration for value, using default",
			"parameter", def.Name, "value", app, "default", def.Default)
		return v, nil
	}
	return "", fmt.Errorf("%w: %s value %q and default %q", ErrNoEnumMapping, def.Name, app, def.Default)
}

func (t *Translator) nextEventNumber() uint16 {
	t.eventNumber++
	return t.eventNumber
}

// input returns the primary parameter value converted to the declared
// application type.
func input(f *mapping.FieldMapping, params []*core.Parameter) (*mapping.ParameterDefinition, any, error) {
	def := &f.Definitions[0]
	p := params[0]
	if !p.IsSet() {
		return def, nil, ErrNoValue
	}
	v, err := core.ConvertValue(def.Type, p.Value)
	if err != nil {
		return def, nil, fmt.Errorf("%s as %s: %w", p.Name, def.Type, err)
	}
	return def, v, nil
}

// output stores v on the primary parameter as the declared application type.
func output(f *mapping.FieldMapping, params []*core.Parameter, v any) error {
	p := params[0]
	p.Type = f.Definitions[0].Type
	return p.Set(v)
}

// accepts reports whether the codec for kind can carry a primary
// application value of type app.
func accepts(kind rpr.Kind, app core.DataType) bool {
	switch kind {
	case rpr.KindWorldCoordinate, rpr.KindEulerAngles, rpr.KindVelocityVector:
		return app.IsVector()
	case rpr.KindUnsignedInt, rpr.KindUnsignedShort, rpr.KindUnsignedChar:
		return app.IsInteger()
	case rpr.KindDouble, rpr.KindFloat:
		return app == core.DataTypeFloat || app == core.DataTypeDouble
	case rpr.KindEntityType:
		return app == core.DataTypeEnumeration || app == core.DataTypeString
	case rpr.KindEntityIdentifier:
		return app == core.DataTypeActor
	case rpr.KindMarking, rpr.KindString:
		return app == core.DataTypeString || app == core.DataTypeEnumeration || app == core.DataTypeActor
	case rpr.KindEventIdentifier:
		return true
	}
	return false
}

func unsupported(f *mapping.FieldMapping) error {
	return fmt.Errorf("%w: %s to %s", ErrUnsupported, f.Definitions[0].Type, f.Type.Name())
}
