// pkg/core/datatype.go
package core

import (
	"fmt"
	"strings"
)

// DataType is the semantic type of an application message parameter.
type DataType uint8

const (
	DataTypeUnknown DataType = iota
	DataTypeVec3
	DataTypeVec3f
	DataTypeVec3d
	DataTypeInt
	DataTypeUInt
	DataTypeShort
	DataTypeUShort
	DataTypeLong
	DataTypeULong
	DataTypeBoolean
	DataTypeFloat
	DataTypeDouble
	DataTypeString
	DataTypeEnumeration
	DataTypeActor
)

var dataTypeNames = [...]string{
	DataTypeUnknown:     "UNKNOWN",
	DataTypeVec3:        "VEC3",
	DataTypeVec3f:       "VEC3F",
	DataTypeVec3d:       "VEC3D",
	DataTypeInt:         "INT",
	DataTypeUInt:        "UINT",
	DataTypeShort:       "SHORT",
	DataTypeUShort:      "USHORT",
	DataTypeLong:        "LONG",
	DataTypeULong:       "ULONG",
	DataTypeBoolean:     "BOOLEAN",
	DataTypeFloat:       "FLOAT",
	DataTypeDouble:      "DOUBLE",
	DataTypeString:      "STRING",
	DataTypeEnumeration: "ENUMERATION",
	DataTypeActor:       "ACTOR",
}

func (d DataType) String() string {
	if int(d) < len(dataTypeNames) {
		return dataTypeNames[d]
	}
	return fmt.Sprintf("DataType(%d)", uint8(d))
}

// ParseDataType resolves a data type by name, case-insensitively.
func ParseDataType(name string) (DataType, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range dataTypeNames {
		if i > 0 && n == upper {
			return DataType(i), nil
		}
	}
	return DataTypeUnknown, fmt.Errorf("unknown data type: %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (d DataType) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DataType) UnmarshalText(text []byte) error {
	v, err := ParseDataType(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// IsVector reports whether values of the type are Vec3.
func (d DataType) IsVector() bool {
	return d == DataTypeVec3 || d == DataTypeVec3f || d == DataTypeVec3d
}

// IsInteger reports whether the type can carry an integral value,
// including booleans and enumeration indices.
func (d DataType) IsInteger() bool {
	switch d {
	case DataTypeInt, DataTypeUInt, DataTypeShort, DataTypeUShort,
		DataTypeLong, DataTypeULong, DataTypeBoolean, DataTypeEnumeration:
		return true
	}
	return false
}
