package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"sorted keys", map[string]any{"b": 1, "a": 2}, `{"a":2,"b":1}`},
		{"nested", map[string]any{"z": []any{true, nil}, "y": map[string]any{"d": "x", "c": 1}}, `{"y":{"c":1,"d":"x"},"z":[true,null]}`},
		{"no html escape", "<a&b>", `"<a&b>"`},
		{"nfc", "e\u0301", "\"\u00e9\""},
		{"line separator literal", "a\u2028b", "\"a\u2028b\""},
		{"escaped backslash stays", `\u2028`, `"\\u2028"`},
		{"control escaped", "a\nb", `"a\nb"`},
		{"float", 1.5, `1.5`},
		{"struct tags", struct {
			B int `json:"b"`
			A int `json:"a"`
		}{B: 1, A: 2}, `{"a":2,"b":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_UTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as a surrogate pair starting 0xD83D, which sorts
	// before U+FF21 in UTF-16 but after it in UTF-8.
	got, err := MarshalCanonical(map[string]any{"Ａ": 1, "\U0001F600": 2})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"Ａ\":1}", string(got))
}

func TestMarshalCanonical_Unsupported(t *testing.T) {
	_, err := MarshalCanonical(make(chan int))
	assert.Error(t, err)
}

func TestHashWithDomain_Separates(t *testing.T) {
	data := []byte(`{"a":1}`)
	assert.NotEqual(t, hashWithDomain("one", data), hashWithDomain("two", data))
	assert.Equal(t, hashWithDomain("one", data), hashWithDomain("one", data))
	assert.Len(t, hashWithDomain("one", data), 64)
}
