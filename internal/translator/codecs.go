package translator

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/OCAP2/hlabridge/internal/mapping"
	"github.com/OCAP2/hlabridge/pkg/core"
	"github.com/OCAP2/hlabridge/pkg/rpr"
)

type worldCoordinateCodec struct{ t *Translator }

func (c worldCoordinateCodec) Encode(f *mapping.FieldMapping, params []*core.Parameter) ([]byte, error) {
	def, v, err := input(f, params)
	if err != nil {
		return nil, err
	}
	if !def.Type.IsVector() {
		return nil, unsupported(f)
	}
	r := c.t.coords.ToRemoteTranslation(v.(core.Vec3))
	buf := make([]byte, rpr.WorldCoordinateLength)
	err = rpr.WorldCoordinate{X: r.X, Y: r.Y, Z: r.Z}.Encode(buf)
	return buf, err
}

func (c worldCoordinateCodec) Decode(f *mapping.FieldMapping, buf []byte, params []*core.Parameter) error {
	if !f.Definitions[0].Type.IsVector() {
		return unsupported(f)
	}
	var wc rpr.WorldCoordinate
	if err := wc.Decode(buf); err != nil {
		return err
	}
	return output(f, params, c.t.coords.ToLocalTranslation(core.Vec3{X: wc.X, Y: wc.Y, Z: wc.Z}))
}

// eulerAnglesCodec carries application rotations whose axis 2 is the
// heading: wire psi, theta, phi come from application axes 2, 0, 1.
type eulerAnglesCodec struct{ t *Translator }

func (c eulerAnglesCodec) Encode(f *mapping.FieldMapping, params []*core.Parameter) ([]byte, error) {
	def, v, err := input(f, params)
	if err != nil {
		return nil, err
	}
	if !def.Type.IsVector() {
		return nil, unsupported(f)
	}
	a := v.(core.Vec3)
	r := c.t.coords.ToRemoteRotation(core.Vec3{X: a.Z, Y: a.X, Z: a.Y})
	buf := make([]byte, rpr.EulerAnglesLength)
	err = rpr.EulerAngles{Psi: float32(r.X), Theta: float32(r.Y), Phi: float32(r.Z)}.Encode(buf)
	return buf, err
}

func (c eulerAnglesCodec) Decode(f *mapping.FieldMapping, buf []byte, params []*core.Parameter) error {
	if !f.Definitions[0].Type.IsVector() {
		return unsupported(f)
	}
	var ea rpr.EulerAngles
	if err := ea.Decode(buf); err != nil {
		return err
	}
	r := c.t.coords.ToLocalRotation(float64(ea.Psi), float64(ea.Theta), float64(ea.Phi))
	return output(f, params, core.Vec3{X: r.Y, Y: r.Z, Z: r.X})
}

// velocityVectorCodec rotates vectors between frames without translating
// them. It serves velocities, accelerations and angular velocities.
type velocityVectorCodec struct{ t *Translator }

func (c velocityVectorCodec) Encode(f *mapping.FieldMapping, params []*core.Parameter) ([]byte, error) {
	def, v, err := input(f, params)
	if err != nil {
		return nil, err
	}
	if !def.Type.IsVector() {
		return nil, unsupported(f)
	}
	r := c.t.coords.OriginRotationMatrixInverse().MulVec(v.(core.Vec3))
	buf := make([]byte, rpr.VelocityVectorLength)
	err = rpr.VelocityVector{X: float32(r.X), Y: float32(r.Y), Z: float32(r.Z)}.Encode(buf)
	return buf, err
}

func (c velocityVectorCodec) Decode(f *mapping.FieldMapping, buf []byte, params []*core.Parameter) error {
	if !f.Definitions[0].Type.IsVector() {
		return unsupported(f)
	}
	var vv rpr.VelocityVector
	if err := vv.Decode(buf); err != nil {
		return err
	}
	remote := core.Vec3{X: float64(vv.X), Y: float64(vv.Y), Z: float64(vv.Z)}
	return output(f, params, c.t.coords.OriginRotationMatrix().MulVec(remote))
}

// unsignedCodec handles the 1, 2 and 4 byte unsigned wire integers.
type unsignedCodec struct {
	t     *Translator
	width int
}

func (c unsignedCodec) Encode(f *mapping.FieldMapping, params []*core.Parameter) ([]byte, error) {
	def, v, err := input(f, params)
	if err != nil {
		return nil, err
	}
	var n uint64
	switch def.Type {
	case core.DataTypeEnumeration:
		wire, err := c.t.wireEnum(def, v.(string))
		if err != nil {
			return nil, err
		}
		n, err = strconv.ParseUint(strings.TrimSpace(wire), 10, c.width*8)
		if err != nil {
			return nil, fmt.Errorf("enumeration %s: %w", def.Name, err)
		}
	case core.DataTypeBoolean:
		if v.(bool) {
			n = 1
		}
	case core.DataTypeInt:
		n = uint64(v.(int32))
	case core.DataTypeShort:
		n = uint64(v.(int16))
	case core.DataTypeLong:
		n = uint64(v.(int64))
	case core.DataTypeUInt:
		n = uint64(v.(uint32))
	case core.DataTypeUShort:
		n = uint64(v.(uint16))
	case core.DataTypeULong:
		n = v.(uint64)
	default:
		return nil, unsupported(f)
	}
	buf := make([]byte, c.width)
	putUint(buf, n)
	return buf, nil
}

func (c unsignedCodec) Decode(f *mapping.FieldMapping, buf []byte, params []*core.Parameter) error {
	def := &f.Definitions[0]
	n := getUint(buf[:c.width])
	var v any
	switch def.Type {
	case core.DataTypeEnumeration:
		v = c.t.appEnum(def, strconv.FormatUint(n, 10))
	case core.DataTypeBoolean:
		v = n != 0
	case core.DataTypeInt:
		v = int32(n)
	case core.DataTypeShort:
		v = int16(n)
	case core.DataTypeLong:
		v = int64(n)
	case core.DataTypeUInt:
		v = uint32(n)
	case core.DataTypeUShort:
		v = uint16(n)
	case core.DataTypeULong:
		v = n
	default:
		return unsupported(f)
	}
	return output(f, params, v)
}

func putUint(buf []byte, n uint64) {
	switch len(buf) {
	case 1:
		buf[0] = byte(n)
	case 2:
		binary.BigEndian.PutUint16(buf, uint16(n))
	case 4:
		binary.BigEndian.PutUint32(buf, uint32(n))
	}
}

func getUint(buf []byte) uint64 {
	switch len(buf) {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(buf))
	case 4:
		return uint64(binary.BigEndian.Uint32(buf))
	}
	return 0
}

type floatCodec struct{ width int }

func (c floatCodec) Encode(f *mapping.FieldMapping, params []*core.Parameter) ([]byte, error) {
	def, v, err := input(f, params)
	if err != nil {
		return nil, err
	}
	var x float64
	switch def.Type {
	case core.DataTypeFloat:
		x = float64(v.(float32))
	case core.DataTypeDouble:
		x = v.(float64)
	default:
		return nil, unsupported(f)
	}
	buf := make([]byte, c.width)
	if c.width == 4 {
		binary.BigEndian.PutUint32(buf, math.Float32bits(float32(x)))
	} else {
		binary.BigEndian.PutUint64(buf, math.Float64bits(x))
	}
	return buf, nil
}

func (c floatCodec) Decode(f *mapping.FieldMapping, buf []byte, params []*core.Parameter) error {
	var x float64
	if c.width == 4 {
		x = float64(math.Float32frombits(binary.BigEndian.Uint32(buf)))
	} else {
		x = math.Float64frombits(binary.BigEndian.Uint64(buf))
	}
	switch f.Definitions[0].Type {
	case core.DataTypeFloat:
		return output(f, params, float32(x))
	case core.DataTypeDouble:
		return output(f, params, x)
	}
	return unsupported(f)
}

// entityTypeCodec carries the DIS entity type as its space separated
// string form, optionally through the enumeration table.
type entityTypeCodec struct{ t *Translator }

func (c entityTypeCodec) Encode(f *mapping.FieldMapping, params []*core.Parameter) ([]byte, error) {
	def, v, err := input(f, params)
	if err != nil {
		return nil, err
	}
	var s string
	switch def.Type {
	case core.DataTypeEnumeration:
		if s, err = c.t.wireEnum(def, v.(string)); err != nil {
			return nil, err
		}
	case core.DataTypeString:
		s = v.(string)
	default:
		return nil, unsupported(f)
	}
	et, err := rpr.ParseEntityType(s)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, rpr.EntityTypeLength)
	err = et.Encode(buf)
	return buf, err
}

func (c entityTypeCodec) Decode(f *mapping.FieldMapping, buf []byte, params []*core.Parameter) error {
	def := &f.Definitions[0]
	var et rpr.EntityType
	if err := et.Decode(buf); err != nil {
		return err
	}
	switch def.Type {
	case core.DataTypeEnumeration:
		return output(f, params, c.t.appEnum(def, et.String()))
	case core.DataTypeString:
		return output(f, params, et.String())
	}
	return unsupported(f)
}

// entityIdentifierCodec carries an actor reference as the entity
// identifier bound to it.
type entityIdentifierCodec struct{ t *Translator }

func (c entityIdentifierCodec) Encode(f *mapping.FieldMapping, params []*core.Parameter) ([]byte, error) {
	def, v, err := input(f, params)
	if err != nil {
		return nil, err
	}
	if def.Type != core.DataTypeActor {
		return nil, unsupported(f)
	}
	actor := v.(core.ActorID)
	id, ok := c.t.ids.EntityForActor(actor)
	if !ok {
		c.t.logger.Debug("actor has no entity identifier", "parameter", def.Name, "actor", actor)
	}
	buf := make([]byte, rpr.EntityIdentifierLength)
	err = id.Encode(buf)
	return buf, err
}

func (c entityIdentifierCodec) Decode(f *mapping.FieldMapping, buf []byte, params []*core.Parameter) error {
	if f.Definitions[0].Type != core.DataTypeActor {
		return unsupported(f)
	}
	var id rpr.EntityIdentifier
	if err := id.Decode(buf); err != nil {
		return err
	}
	actor, ok := c.t.ids.ActorForEntity(id)
	if !ok {
		c.t.logger.Debug("no actor for entity identifier", "parameter", f.Definitions[0].Name, "entity", id.String())
		return nil
	}
	return output(f, params, actor)
}

// eventIdentifierCodec sends integer application values as the event
// number; any other value gets the next number of the local sequence.
type eventIdentifierCodec struct{ t *Translator }

func (c eventIdentifierCodec) Encode(f *mapping.FieldMapping, params []*core.Parameter) ([]byte, error) {
	def := &f.Definitions[0]
	var id rpr.EventIdentifier
	if def.Type.IsInteger() && def.Type != core.DataTypeEnumeration && def.Type != core.DataTypeBoolean {
		_, v, err := input(f, params)
		if err != nil {
			return nil, err
		}
		n, err := core.ConvertValue(core.DataTypeUShort, v)
		if err != nil {
			return nil, err
		}
		id.EventNumber = n.(uint16)
	} else {
		id.EventNumber = c.t.nextEventNumber()
	}
	buf := make([]byte, rpr.EventIdentifierLength)
	err := id.Encode(buf)
	return buf, err
}

func (c eventIdentifierCodec) Decode(f *mapping.FieldMapping, buf []byte, params []*core.Parameter) error {
	var id rpr.EventIdentifier
	if err := id.Decode(buf); err != nil {
		return err
	}
	def := &f.Definitions[0]
	if def.Type.IsInteger() && def.Type != core.DataTypeEnumeration && def.Type != core.DataTypeBoolean {
		return output(f, params, id.EventNumber)
	}
	return nil
}

type markingCodec struct{ t *Translator }

func (c markingCodec) Encode(f *mapping.FieldMapping, params []*core.Parameter) ([]byte, error) {
	def, v, err := input(f, params)
	if err != nil {
		return nil, err
	}
	s, err := c.t.textIn(f, def, v)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, rpr.MarkingLength)
	err = rpr.Marking{CharacterSet: rpr.MarkingASCII, Text: s}.Encode(buf)
	return buf, err
}

func (c markingCodec) Decode(f *mapping.FieldMapping, buf []byte, params []*core.Parameter) error {
	var m rpr.Marking
	if err := m.Decode(buf); err != nil {
		return err
	}
	v, err := c.t.textOut(f, m.Text)
	if err != nil {
		return err
	}
	return output(f, params, v)
}

// stringCodec writes a null terminated string and returns only the bytes
// actually used, at most the type's encoded length.
type stringCodec struct{ t *Translator }

func (c stringCodec) Encode(f *mapping.FieldMapping, params []*core.Parameter) ([]byte, error) {
	def, v, err := input(f, params)
	if err != nil {
		return nil, err
	}
	s, err := c.t.textIn(f, def, v)
	if err != nil {
		return nil, err
	}
	s = truncateRunes(s, f.Type.EncodedLength()-1)
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return buf, nil
}

// truncateRunes cuts s to at most limit bytes without splitting a rune.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func (c stringCodec) Decode(f *mapping.FieldMapping, buf []byte, params []*core.Parameter) error {
	v, err := c.t.textOut(f, rpr.CString(buf))
	if err != nil {
		return err
	}
	return output(f, params, v)
}

func (t *Translator) textIn(f *mapping.FieldMapping, def *mapping.ParameterDefinition, v any) (string, error) {
	switch def.Type {
	case core.DataTypeString:
		return v.(string), nil
	case core.DataTypeEnumeration:
		return t.wireEnum(def, v.(string))
	case core.DataTypeActor:
		return v.(core.ActorID).String(), nil
	}
	return "", unsupported(f)
}

func (t *Translator) textOut(f *mapping.FieldMapping, s string) (any, error) {
	def := &f.Definitions[0]
	switch def.Type {
	case core.DataTypeString:
		return s, nil
	case core.DataTypeEnumeration:
		return t.appEnum(def, s), nil
	case core.DataTypeActor:
		return core.ActorID(s), nil
	}
	return nil, unsupported(f)
}
