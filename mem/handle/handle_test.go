package handle

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandle_FieldsRoundTrip(t *testing.T) {
	cases := []struct {
		kind  Kind
		index uint32
		gen   uint8
	}{
		{0, 0, 0},
		{3, 17, 1},
		{255, MaxIndex, 255},
		{7, 1 << 20, 128},
	}
	for _, c := range cases {
		h := New(c.kind, c.index, c.gen)
		assert.False(t, h.IsNil())
		assert.Equal(t, c.kind, h.Kind())
		assert.Equal(t, c.index, h.Index())
		assert.Equal(t, c.gen, h.Generation())
	}
}

func TestHandle_NilNeverAliasesSlotZero(t *testing.T) {
	var zero Handle
	assert.True(t, zero.IsNil())
	assert.Equal(t, Nil, zero)
	assert.Equal(t, uint32(math.MaxUint32), zero.Index())
	assert.NotEqual(t, zero, New(0, 0, 0))
}

func TestHandle_DistinctGenerationsDiffer(t *testing.T) {
	a := New(1, 5, 0)
	b := New(1, 5, 1)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a.Index(), b.Index())
}

func TestHandle_WithKind(t *testing.T) {
	h := New(1, 42, 9).WithKind(200)
	assert.Equal(t, Kind(200), h.Kind())
	assert.Equal(t, uint32(42), h.Index())
	assert.Equal(t, uint8(9), h.Generation())
}

func TestHandle_IndexTooLargePanics(t *testing.T) {
	assert.Panics(t, func() { New(0, math.MaxUint32, 0) })
}

func TestHandle_String(t *testing.T) {
	assert.Equal(t, "handle(nil)", Nil.String())
	assert.Equal(t, "handle(2:10@3)", New(2, 10, 3).String())
}
