// pkg/core/value.go
package core

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// ConvertValue coerces v into the canonical Go representation of dt:
//
//	VEC3, VEC3F, VEC3D -> Vec3
//	INT, SHORT, LONG   -> int32, int16, int64
//	UINT, USHORT, ULONG -> uint32, uint16, uint64
//	BOOLEAN -> bool, FLOAT -> float32, DOUBLE -> float64
//	STRING, ENUMERATION -> string, ACTOR -> ActorID
//
// Strings are parsed, so ConvertValue also serves to apply configured defaults.
func ConvertValue(dt DataType, v any) (any, error) {
	switch dt {
	case DataTypeVec3, DataTypeVec3d:
		return toVec3(v)
	case DataTypeVec3f:
		vec, err := toVec3(v)
		if err != nil {
			return nil, err
		}
		return vec.Float32(), nil
	case DataTypeInt:
		return cast.ToInt32E(v)
	case DataTypeUInt:
		return cast.ToUint32E(v)
	case DataTypeShort:
		return cast.ToInt16E(v)
	case DataTypeUShort:
		return cast.ToUint16E(v)
	case DataTypeLong:
		return cast.ToInt64E(v)
	case DataTypeULong:
		return cast.ToUint64E(v)
	case DataTypeBoolean:
		return cast.ToBoolE(v)
	case DataTypeFloat:
		return cast.ToFloat32E(v)
	case DataTypeDouble:
		return cast.ToFloat64E(v)
	case DataTypeString, DataTypeEnumeration:
		return cast.ToStringE(v)
	case DataTypeActor:
		if id, ok := v.(ActorID); ok {
			return id, nil
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, err
		}
		return ActorID(s), nil
	}
	return nil, fmt.Errorf("cannot convert %T to %s", v, dt)
}

// ParseValue converts the string form of a value, as used for mapping defaults.
func ParseValue(dt DataType, s string) (any, error) {
	return ConvertValue(dt, s)
}

func toVec3(v any) (Vec3, error) {
	switch t := v.(type) {
	case Vec3:
		return t, nil
	case *Vec3:
		return *t, nil
	case [3]float64:
		return Vec3{t[0], t[1], t[2]}, nil
	case []float64:
		if len(t) == 3 {
			return Vec3{t[0], t[1], t[2]}, nil
		}
	case []any:
		if len(t) == 3 {
			var out [3]float64
			for i, c := range t {
				f, err := cast.ToFloat64E(c)
				if err != nil {
					return Vec3{}, err
				}
				out[i] = f
			}
			return Vec3{out[0], out[1], out[2]}, nil
		}
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, c := range t {
			m[strings.ToLower(k)] = c
		}
		var out [3]float64
		for i, k := range []string{"x", "y", "z"} {
			f, err := cast.ToFloat64E(m[k])
			if err != nil {
				return Vec3{}, err
			}
			out[i] = f
		}
		return Vec3{out[0], out[1], out[2]}, nil
	case string:
		fields := strings.FieldsFunc(t, func(r rune) bool { return r == ' ' || r == ',' })
		if len(fields) == 3 {
			var out [3]float64
			for i, f := range fields {
				n, err := cast.ToFloat64E(f)
				if err != nil {
					return Vec3{}, err
				}
				out[i] = n
			}
			return Vec3{out[0], out[1], out[2]}, nil
		}
	}
	return Vec3{}, fmt.Errorf("cannot convert %T to a vector", v)
}
