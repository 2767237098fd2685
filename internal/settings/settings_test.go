package settings

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceGlobalDPI(t *testing.T) {
	t.Run("valid uint", func(t *testing.T) {
		value, err := Coerce(ScopeGlobal, GlobalSettings, "dpi", json.RawMessage(`300`))
		require.NoError(t, err)
		assert.Equal(t, uint64(300), value)
	})

	t.Run("type mismatch names scope key type and value", func(t *testing.T) {
		_, err := Coerce(ScopeGlobal, GlobalSettings, "dpi", json.RawMessage(`"high"`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Global")
		assert.Contains(t, err.Error(), "dpi")
		assert.Contains(t, err.Error(), "Uint")
	})
}

func TestCoerceUnknownKeyIgnored(t *testing.T) {
	value, err := Coerce(ScopeGlobal, GlobalSettings, "notARealSetting", json.RawMessage(`123`))
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestCoerceObjectBoolAndFloat(t *testing.T) {
	value, err := Coerce(ScopeObject, ObjectSettings, "pagesCount", json.RawMessage(`true`))
	require.NoError(t, err)
	assert.Equal(t, true, value)

	value, err = Coerce(ScopeObject, ObjectSettings, "toc.fontScale", json.RawMessage(`0.8`))
	require.NoError(t, err)
	assert.Equal(t, 0.8, value)
}

func TestCoerceAll(t *testing.T) {
	values := map[string]json.RawMessage{
		"dpi":      json.RawMessage(`150`),
		"collate":  json.RawMessage(`true`),
		"orphaned": json.RawMessage(`"ignored"`),
	}

	coerced, err := CoerceAll(ScopeGlobal, GlobalSettings, values)

	require.NoError(t, err)
	assert.Equal(t, uint64(150), coerced["dpi"])
	assert.Equal(t, true, coerced["collate"])
	_, present := coerced["orphaned"]
	assert.False(t, present)
}

func TestCoerceAllStopsAtFirstMismatch(t *testing.T) {
	values := map[string]json.RawMessage{
		"dpi": json.RawMessage(`"not-a-number"`),
	}

	_, err := CoerceAll(ScopeGlobal, GlobalSettings, values)

	require.Error(t, err)
	var mismatch *TypeMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestValueTypeString(t *testing.T) {
	cases := map[ValueType]string{
		String: "String",
		Bool:   "Bool",
		Int:    "Int",
		Uint:   "Uint",
		Float:  "Float",
	}
	for vt, want := range cases {
		assert.Equal(t, want, vt.String())
	}
}
