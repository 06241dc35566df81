package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue_Scalars(t *testing.T) {
	v, err := ParseValue(DataTypeUShort, "65535")
	require.NoError(t, err)
	assert.Equal(t, uint16(65535), v)

	v, err = ParseValue(DataTypeInt, "-12")
	require.NoError(t, err)
	assert.Equal(t, int32(-12), v)

	v, err = ParseValue(DataTypeBoolean, "true")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = ParseValue(DataTypeDouble, "2.5")
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)

	v, err = ParseValue(DataTypeEnumeration, "NoDamage")
	require.NoError(t, err)
	assert.Equal(t, "NoDamage", v)
}

func TestParseValue_Vectors(t *testing.T) {
	v, err := ParseValue(DataTypeVec3, "1 2 3")
	require.NoError(t, err)
	assert.Equal(t, Vec3{1, 2, 3}, v)

	v, err = ParseValue(DataTypeVec3d, "1,2,3")
	require.NoError(t, err)
	assert.Equal(t, Vec3{1, 2, 3}, v)

	_, err = ParseValue(DataTypeVec3, "1 2")
	assert.Error(t, err)
}

func TestConvertValue_ActorAndVectorSources(t *testing.T) {
	v, err := ConvertValue(DataTypeActor, "abc")
	require.NoError(t, err)
	assert.Equal(t, ActorID("abc"), v)

	v, err = ConvertValue(DataTypeVec3, []any{1.0, 2.0, 3.0})
	require.NoError(t, err)
	assert.Equal(t, Vec3{1, 2, 3}, v)

	v, err = ConvertValue(DataTypeVec3f, map[string]any{"X": 0.1, "y": 0.2, "z": 0.3})
	require.NoError(t, err)
	assert.Equal(t, Vec3{0.1, 0.2, 0.3}.Float32(), v)
}

func TestParseDataType(t *testing.T) {
	dt, err := ParseDataType("enumeration")
	require.NoError(t, err)
	assert.Equal(t, DataTypeEnumeration, dt)

	_, err = ParseDataType("matrix")
	assert.Error(t, err)
}
