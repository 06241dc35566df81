package rpr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Encoded sizes of the fixed DIS structures.
const (
	EntityTypeLength       = 8
	EntityIdentifierLength = 6
	EventIdentifierLength  = 5
	WorldCoordinateLength  = 24
	EulerAnglesLength      = 12
	VelocityVectorLength   = 12
	MarkingLength          = 12
)

// MarkingASCII is the character set tag for ASCII markings.
const MarkingASCII = 1

// ErrShortBuffer is returned when a buffer is smaller than the encoding.
var ErrShortBuffer = errors.New("buffer too small")

func checkLen(buf []byte, n int, what string) error {
	if len(buf) < n {
		return fmt.Errorf("%s needs %d bytes, have %d: %w", what, n, len(buf), ErrShortBuffer)
	}
	return nil
}

// EntityType is the DIS entity type record. A zero field is a wildcard.
type EntityType struct {
	Kind        uint8
	Domain      uint8
	Country     uint16
	Category    uint8
	Subcategory uint8
	Specific    uint8
	Extra       uint8
}

func (e EntityType) fields() [7]uint16 {
	return [7]uint16{
		uint16(e.Kind), uint16(e.Domain), e.Country, uint16(e.Category),
		uint16(e.Subcategory), uint16(e.Specific), uint16(e.Extra),
	}
}

// Encode writes the 8 byte wire form into buf.
func (e EntityType) Encode(buf []byte) error {
	if err := checkLen(buf, EntityTypeLength, "entity type"); err != nil {
		return err
	}
	buf[0] = e.Kind
	buf[1] = e.Domain
	binary.BigEndian.PutUint16(buf[2:4], e.Country)
	buf[4] = e.Category
	buf[5] = e.Subcategory
	buf[6] = e.Specific
	buf[7] = e.Extra
	return nil
}

// Decode reads the 8 byte wire form from buf.
func (e *EntityType) Decode(buf []byte) error {
	if err := checkLen(buf, EntityTypeLength, "entity type"); err != nil {
		return err
	}
	e.Kind = buf[0]
	e.Domain = buf[1]
	e.Country = binary.BigEndian.Uint16(buf[2:4])
	e.Category = buf[4]
	e.Subcategory = buf[5]
	e.Specific = buf[6]
	e.Extra = buf[7]
	return nil
}

// String renders the seven fields separated by spaces, e.g. "1 2 225 1 0 0 0".
func (e EntityType) String() string {
	f := e.fields()
	parts := make([]string, len(f))
	for i, v := range f {
		parts[i] = strconv.Itoa(int(v))
	}
	return strings.Join(parts, " ")
}

// ParseEntityType parses the String form. Missing trailing fields are zero.
func ParseEntityType(s string) (EntityType, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '.' || r == ':' || r == ',' })
	if len(parts) == 0 || len(parts) > 7 {
		return EntityType{}, fmt.Errorf("invalid entity type %q", s)
	}
	var vals [7]uint64
	for i, p := range parts {
		bits := 8
		if i == 2 {
			bits = 16
		}
		v, err := strconv.ParseUint(p, 10, bits)
		if err != nil {
			return EntityType{}, fmt.Errorf("invalid entity type %q: %w", s, err)
		}
		vals[i] = v
	}
	return EntityType{
		Kind:        uint8(vals[0]),
		Domain:      uint8(vals[1]),
		Country:     uint16(vals[2]),
		Category:    uint8(vals[3]),
		Subcategory: uint8(vals[4]),
		Specific:    uint8(vals[5]),
		Extra:       uint8(vals[6]),
	}, nil
}

// RankMatch scores how specifically e matches actual. Fields are compared
// left to right. Any pair of non-wildcard fields that differ makes the
// result -1. Each pair of equal non-wildcard fields adds one.
func (e EntityType) RankMatch(actual EntityType) int {
	a, b := e.fields(), actual.fields()
	rank := 0
	for i := range a {
		if a[i] == 0 || b[i] == 0 {
			continue
		}
		if a[i] != b[i] {
			return -1
		}
		rank++
	}
	return rank
}

// EntityIdentifier is the DIS site/application/entity triple.
type EntityIdentifier struct {
	Site        uint16
	Application uint16
	Entity      uint16
}

// Encode writes the 6 byte wire form into buf.
func (e EntityIdentifier) Encode(buf []byte) error {
	if err := checkLen(buf, EntityIdentifierLength, "entity identifier"); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(buf[0:2], e.Site)
	binary.BigEndian.PutUint16(buf[2:4], e.Application)
	binary.BigEndian.PutUint16(buf[4:6], e.Entity)
	return nil
}

// Decode reads the 6 byte wire form from buf.
func (e *EntityIdentifier) Decode(buf []byte) error {
	if err := checkLen(buf, EntityIdentifierLength, "entity identifier"); err != nil {
		return err
	}
	e.Site = binary.BigEndian.Uint16(buf[0:2])
	e.Application = binary.BigEndian.Uint16(buf[2:4])
	e.Entity = binary.BigEndian.Uint16(buf[4:6])
	return nil
}

func (e EntityIdentifier) String() string {
	return fmt.Sprintf("%d:%d:%d", e.Site, e.Application, e.Entity)
}

// EventIdentifier is the DIS event number. The wire form pads it to five bytes.
type EventIdentifier struct {
	EventNumber uint16
}

// Encode writes the event number followed by the "oo" filler and a null.
func (e EventIdentifier) Encode(buf []byte) error {
	if err := checkLen(buf, EventIdentifierLength, "event identifier"); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(buf[0:2], e.EventNumber)
	copy(buf[2:5], "oo\x00")
	return nil
}

// Decode reads the event number; the filler is ignored.
func (e *EventIdentifier) Decode(buf []byte) error {
	if err := checkLen(buf, EventIdentifierLength, "event identifier"); err != nil {
		return err
	}
	e.EventNumber = binary.BigEndian.Uint16(buf[0:2])
	return nil
}

// WorldCoordinate is a geocentric position.
type WorldCoordinate struct {
	X, Y, Z float64
}

// Encode writes three big-endian float64 values.
func (w WorldCoordinate) Encode(buf []byte) error {
	if err := checkLen(buf, WorldCoordinateLength, "world coordinate"); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(w.X))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(w.Y))
	binary.BigEndian.PutUint64(buf[16:24], math.Float64bits(w.Z))
	return nil
}

// Decode reads three big-endian float64 values.
func (w *WorldCoordinate) Decode(buf []byte) error {
	if err := checkLen(buf, WorldCoordinateLength, "world coordinate"); err != nil {
		return err
	}
	w.X = math.Float64frombits(binary.BigEndian.Uint64(buf[0:8]))
	w.Y = math.Float64frombits(binary.BigEndian.Uint64(buf[8:16]))
	w.Z = math.Float64frombits(binary.BigEndian.Uint64(buf[16:24]))
	return nil
}

// EulerAngles is an orientation in radians.
type EulerAngles struct {
	Psi, Theta, Phi float32
}

// Encode writes psi, theta, phi as big-endian float32 values.
func (a EulerAngles) Encode(buf []byte) error {
	if err := checkLen(buf, EulerAnglesLength, "euler angles"); err != nil {
		return err
	}
	putFloat32s(buf, a.Psi, a.Theta, a.Phi)
	return nil
}

// Decode reads psi, theta, phi.
func (a *EulerAngles) Decode(buf []byte) error {
	if err := checkLen(buf, EulerAnglesLength, "euler angles"); err != nil {
		return err
	}
	a.Psi, a.Theta, a.Phi = getFloat32s(buf)
	return nil
}

// VelocityVector is used for linear velocity, acceleration and angular velocity.
type VelocityVector struct {
	X, Y, Z float32
}

// Encode writes three big-endian float32 values.
func (v VelocityVector) Encode(buf []byte) error {
	if err := checkLen(buf, VelocityVectorLength, "velocity vector"); err != nil {
		return err
	}
	putFloat32s(buf, v.X, v.Y, v.Z)
	return nil
}

// Decode reads three big-endian float32 values.
func (v *VelocityVector) Decode(buf []byte) error {
	if err := checkLen(buf, VelocityVectorLength, "velocity vector"); err != nil {
		return err
	}
	v.X, v.Y, v.Z = getFloat32s(buf)
	return nil
}

func putFloat32s(buf []byte, a, b, c float32) {
	binary.BigEndian.PutUint32(buf[0:4], math.Float32bits(a))
	binary.BigEndian.PutUint32(buf[4:8], math.Float32bits(b))
	binary.BigEndian.PutUint32(buf[8:12], math.Float32bits(c))
}

func getFloat32s(buf []byte) (float32, float32, float32) {
	return math.Float32frombits(binary.BigEndian.Uint32(buf[0:4])),
		math.Float32frombits(binary.BigEndian.Uint32(buf[4:8])),
		math.Float32frombits(binary.BigEndian.Uint32(buf[8:12]))
}

// Marking is the DIS entity marking: a charset tag followed by 11 text bytes.
type Marking struct {
	CharacterSet uint8
	Text         string
}

// Encode writes the marking, truncating text to 11 bytes and null padding.
func (m Marking) Encode(buf []byte) error {
	if err := checkLen(buf, MarkingLength, "marking"); err != nil {
		return err
	}
	buf[0] = m.CharacterSet
	text := buf[1:MarkingLength]
	n := copy(text, m.Text)
	clear(text[n:])
	return nil
}

// Decode reads the charset tag and the text up to the first null.
func (m *Marking) Decode(buf []byte) error {
	if err := checkLen(buf, MarkingLength, "marking"); err != nil {
		return err
	}
	m.CharacterSet = buf[0]
	m.Text = CString(buf[1:MarkingLength])
	return nil
}

// CString returns the bytes of b before the first null.
func CString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
