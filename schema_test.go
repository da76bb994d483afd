package drift_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.driftcloud.dev/drift"
)

func TestOptional(t *testing.T) {
	typ := drift.Optional(drift.TypeString)

	assert.NoError(t, drift.CheckField("f", nil, typ))
	assert.NoError(t, drift.CheckField("f", "x", typ))
	assert.Error(t, drift.CheckField("f", 1, typ))
}

func TestListOf(t *testing.T) {
	typ := drift.ListOf(drift.TypeString)

	assert.NoError(t, drift.CheckField("f", []any{"a", "b"}, typ))
	assert.NoError(t, drift.CheckField("f", []string{"a"}, typ))

	err := drift.CheckField("f", []any{"a", 2}, typ)

	var ive *drift.InvalidFieldValueError

	require.ErrorAs(t, err, &ive)

	assert.Equal(t, "f[1]", ive.Field)
}

func TestMapOf(t *testing.T) {
	typ := drift.MapOf(drift.OneOf("a", "b"), drift.TypeInt)

	assert.NoError(t, drift.CheckField("f", map[string]any{"a": 1}, typ))
	assert.NoError(t, drift.CheckField("f", map[any]any{"b": 2}, typ))

	err := drift.CheckField("f", map[string]any{"z": 1}, typ)

	var ive *drift.InvalidFieldValueError

	require.ErrorAs(t, err, &ive)

	assert.Equal(t, "f key", ive.Field)

	// First error is the smallest offending key
	err = drift.CheckField("f", map[string]any{"a": "x", "b": "y"}, typ)

	require.ErrorAs(t, err, &ive)

	assert.Equal(t, "f[a]", ive.Field)
}

func TestOneOf(t *testing.T) {
	typ := drift.OneOf("small", "large")

	assert.NoError(t, drift.CheckField("f", "small", typ))

	err := drift.CheckField("f", "medium", typ)

	var ive *drift.InvalidFieldValueError

	require.ErrorAs(t, err, &ive)

	assert.Contains(t, ive.Expected, "small")

	err = drift.CheckField("f", 3, typ)

	require.ErrorAs(t, err, &ive)

	assert.Equal(t, "string", ive.Expected)
}

func TestTypeIntWidths(t *testing.T) {
	for _, v := range []any{int(1), int64(1), uint16(1)} {
		assert.NoError(t, drift.CheckField("f", v, drift.TypeInt))
	}

	assert.Error(t, drift.CheckField("f", 1.5, drift.TypeInt))
}
