package rpr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityType_WireLayout(t *testing.T) {
	et := EntityType{Kind: 1, Domain: 2, Country: 225, Category: 1, Subcategory: 3, Specific: 4, Extra: 5}
	buf := make([]byte, EntityTypeLength)
	require.NoError(t, et.Encode(buf))

	assert.Equal(t, []byte{1, 2, 0, 225, 1, 3, 4, 5}, buf)

	var out EntityType
	require.NoError(t, out.Decode(buf))
	assert.Equal(t, et, out)
}

func TestEntityType_StringRoundTrip(t *testing.T) {
	et := EntityType{Kind: 1, Domain: 2, Country: 225, Category: 1}
	assert.Equal(t, "1 2 225 1 0 0 0", et.String())

	parsed, err := ParseEntityType(et.String())
	require.NoError(t, err)
	assert.Equal(t, et, parsed)

	parsed, err = ParseEntityType("1.2.225")
	require.NoError(t, err)
	assert.Equal(t, EntityType{Kind: 1, Domain: 2, Country: 225}, parsed)

	_, err = ParseEntityType("1 2 70000")
	assert.Error(t, err)
	_, err = ParseEntityType("")
	assert.Error(t, err)
}

func TestRankMatch_SelfMatchCountsEveryField(t *testing.T) {
	et := EntityType{Kind: 1, Domain: 2, Country: 225, Category: 1, Subcategory: 2, Specific: 3, Extra: 4}
	assert.Equal(t, 7, et.RankMatch(et))
}

func TestRankMatch_MismatchIsNoMatch(t *testing.T) {
	a := EntityType{Kind: 1, Domain: 2, Country: 225, Category: 1, Subcategory: 2, Specific: 3, Extra: 4}

	b := a
	b.Extra = 9
	assert.Equal(t, -1, a.RankMatch(b))
	assert.Equal(t, -1, b.RankMatch(a))

	c := a
	c.Kind = 3
	assert.Equal(t, -1, a.RankMatch(c))
}

func TestRankMatch_WildcardsScoreNothing(t *testing.T) {
	generic := EntityType{Kind: 1, Domain: 2, Country: 225}
	specific := EntityType{Kind: 1, Domain: 2, Country: 225, Category: 1}
	actual := EntityType{Kind: 1, Domain: 2, Country: 225, Category: 1, Subcategory: 5}

	assert.Equal(t, 3, generic.RankMatch(actual))
	assert.Equal(t, 4, specific.RankMatch(actual))
	assert.Equal(t, 0, EntityType{}.RankMatch(actual))
}

func TestEntityIdentifier_RoundTrip(t *testing.T) {
	for _, id := range []EntityIdentifier{
		{},
		{Site: 1, Application: 2, Entity: 7},
		{Site: math.MaxUint16, Application: math.MaxUint16, Entity: math.MaxUint16},
	} {
		buf := make([]byte, EntityIdentifierLength)
		require.NoError(t, id.Encode(buf))
		var out EntityIdentifier
		require.NoError(t, out.Decode(buf))
		assert.Equal(t, id, out)
	}

	buf := make([]byte, EntityIdentifierLength)
	require.NoError(t, EntityIdentifier{Site: 1, Application: 2, Entity: 7}.Encode(buf))
	assert.Equal(t, []byte{0, 1, 0, 2, 0, 7}, buf)
}

func TestEventIdentifier_Filler(t *testing.T) {
	buf := make([]byte, EventIdentifierLength)
	require.NoError(t, EventIdentifier{EventNumber: 0x0102}.Encode(buf))
	assert.Equal(t, []byte{1, 2, 'o', 'o', 0}, buf)

	var out EventIdentifier
	require.NoError(t, out.Decode(buf))
	assert.Equal(t, uint16(0x0102), out.EventNumber)
}

func TestFixedStructures_RoundTrip(t *testing.T) {
	wc := WorldCoordinate{X: -6378137.5, Y: 0, Z: math.MaxFloat64}
	buf := make([]byte, WorldCoordinateLength)
	require.NoError(t, wc.Encode(buf))
	var wcOut WorldCoordinate
	require.NoError(t, wcOut.Decode(buf))
	assert.Equal(t, wc, wcOut)

	ea := EulerAngles{Psi: 1.5, Theta: -0.25, Phi: 3.125}
	buf = make([]byte, EulerAnglesLength)
	require.NoError(t, ea.Encode(buf))
	var eaOut EulerAngles
	require.NoError(t, eaOut.Decode(buf))
	assert.Equal(t, ea, eaOut)

	vv := VelocityVector{}
	require.NoError(t, vv.Encode(buf))
	var vvOut VelocityVector
	require.NoError(t, vvOut.Decode(buf))
	assert.Equal(t, vv, vvOut)
}

func TestMarking(t *testing.T) {
	buf := make([]byte, MarkingLength)
	require.NoError(t, Marking{CharacterSet: MarkingASCII, Text: "TANK01"}.Encode(buf))
	assert.Equal(t, byte(1), buf[0])
	assert.Equal(t, "TANK01", string(buf[1:7]))
	assert.Equal(t, make([]byte, 5), buf[7:])

	var m Marking
	require.NoError(t, m.Decode(buf))
	assert.Equal(t, "TANK01", m.Text)

	require.NoError(t, Marking{CharacterSet: MarkingASCII, Text: "ABCDEFGHIJKLMNOP"}.Encode(buf))
	require.NoError(t, m.Decode(buf))
	assert.Equal(t, "ABCDEFGHIJK", m.Text)
}

func TestShortBuffer(t *testing.T) {
	err := EntityType{}.Encode(make([]byte, 3))
	assert.ErrorIs(t, err, ErrShortBuffer)

	var id EntityIdentifier
	assert.ErrorIs(t, id.Decode(make([]byte, 5)), ErrShortBuffer)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	expected := map[string]int{
		WorldCoordinateType:  24,
		EulerAnglesType:      12,
		VelocityVectorType:   12,
		UnsignedIntType:      4,
		UnsignedShortType:    2,
		UnsignedCharType:     1,
		DoubleType:           8,
		FloatType:            4,
		EntityTypeType:       8,
		EntityIdentifierType: 6,
		EventIdentifierType:  5,
		MarkingType:          12,
		StringType:           128,
	}
	assert.Len(t, r.All(), len(expected))
	for name, size := range expected {
		at, ok := r.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, size, at.EncodedLength(), name)
		assert.Equal(t, 1, at.SupportedParameterCount(), name)
	}

	_, ok := r.Lookup("ARTICULATED_PART_TYPE")
	assert.False(t, ok)

	st, _ := r.ForKind(KindString)
	assert.True(t, st.IsVariableLength())
	assert.Same(t, r.MustLookup(StringType), st)
}
