package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldMapScanAcceptsDriverShapes(t *testing.T) {
	var m FieldMap
	require.NoError(t, m.Scan([]byte(`{"ITNr":"A1"}`)))
	assert.Equal(t, "A1", m["ITNr"])

	require.NoError(t, m.Scan(`{"SuSVorn":"Max"}`))
	assert.Equal(t, "Max", m["SuSVorn"])

	require.NoError(t, m.Scan(nil))
	assert.Empty(t, m)

	assert.Error(t, m.Scan(42))
}

func TestFieldMapValueOfNilIsEmptyObject(t *testing.T) {
	var m FieldMap
	v, err := m.Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)
}

func TestFieldMapGetTrims(t *testing.T) {
	m := FieldMap{"ITNr": "  A1 ", "blank": "   "}

	v, ok := m.Get("ITNr")
	assert.True(t, ok)
	assert.Equal(t, "A1", v)

	_, ok = m.Get("blank")
	assert.False(t, ok)
	_, ok = m.Get("missing")
	assert.False(t, ok)
}
