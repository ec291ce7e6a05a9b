package jsonutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalIndent_SortedAndSpaced(t *testing.T) {
	v := map[string]any{
		"catalogs":    map[string]any{"b": 1.0, "a": "x"},
		"__version__": 1,
	}
	data, err := MarshalIndent(v, "", DatabaseIndent)
	require.NoError(t, err)

	want := `{
    "__version__": 1,
    "catalogs": {
        "a": "x",
        "b": 1
    }
}`
	assert.Equal(t, want, string(data))
}

func TestMarshal_Deterministic(t *testing.T) {
	v := map[string]int{"z": 1, "m": 2, "a": 3}
	for range 20 {
		data, err := Marshal(v)
		require.NoError(t, err)
		assert.Equal(t, `{"a":3,"m":2,"z":1}`, string(data))
	}
}

func TestMarshal_NoHTMLEscaping(t *testing.T) {
	data, err := Marshal(map[string]string{"url": "http://vo.example/cs?CAT=a&"})
	require.NoError(t, err)
	assert.Equal(t, `{"url":"http://vo.example/cs?CAT=a&"}`, string(data))
}

func TestWriteIndent_TrailingNewline(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteIndent(&buf, []string{"W06"}, "  "))
	assert.True(t, strings.HasSuffix(buf.String(), "]\n"))
}

func TestUnmarshal(t *testing.T) {
	var m map[string]any
	require.NoError(t, Unmarshal([]byte(`{"url":"http://x/","validate_nwarnings":3,"validate_network_error":null}`), &m))
	assert.Equal(t, "http://x/", m["url"])
	assert.Equal(t, 3.0, m["validate_nwarnings"])
	assert.Nil(t, m["validate_network_error"])

	assert.Error(t, Unmarshal([]byte(`{invalid}`), &m))
}

func TestUnmarshalRead(t *testing.T) {
	var v struct {
		Version int `json:"__version__"`
	}
	require.NoError(t, UnmarshalRead(strings.NewReader(`{"__version__": 1}`), &v))
	assert.Equal(t, 1, v.Version)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid([]byte(`{"a":[1,2]}`)))
	assert.False(t, Valid([]byte(`{"a":`)))
}

func TestEncoder_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	enc := NewStreamEncoder(&buf)
	require.NoError(t, enc.Encode(map[string]int{"good": 1}))
	require.NoError(t, enc.Encode(map[string]int{"warn": 2}))
	assert.Equal(t, "{\"good\":1}\n{\"warn\":2}\n", buf.String())
}
