package internal_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shredbx/localize/internal"
)

type payload struct {
	Value   string `json:"value"`
	Version uint   `json:"version"`
}

func TestMarshalPassThrough(t *testing.T) {
	raw, err := internal.Marshal([]byte("already encoded"))
	require.NoError(t, err)
	require.Equal(t, []byte("already encoded"), raw)

	raw, err = internal.Marshal("plain text")
	require.NoError(t, err)
	require.Equal(t, []byte("plain text"), raw)

	raw, err = internal.Marshal(json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(raw))
}

func TestMarshalStruct(t *testing.T) {
	raw, err := internal.Marshal(payload{Value: "hello", Version: 3})
	require.NoError(t, err)
	require.JSONEq(t, `{"value":"hello","version":3}`, string(raw))
}

func TestUnmarshalPassThrough(t *testing.T) {
	var bytesHolder []byte
	require.NoError(t, internal.Unmarshal([]byte("raw"), &bytesHolder))
	require.Equal(t, []byte("raw"), bytesHolder)

	var stringHolder string
	require.NoError(t, internal.Unmarshal([]byte("text"), &stringHolder))
	require.Equal(t, "text", stringHolder)

	var rawHolder json.RawMessage
	require.NoError(t, internal.Unmarshal([]byte(`{"a":1}`), &rawHolder))
	require.JSONEq(t, `{"a":1}`, string(rawHolder))
}

func TestRoundTripStruct(t *testing.T) {
	raw, err := internal.Marshal(payload{Value: "สวัสดี", Version: 7})
	require.NoError(t, err)

	var decoded payload
	require.NoError(t, internal.Unmarshal(raw, &decoded))
	require.Equal(t, "สวัสดี", decoded.Value)
	require.Equal(t, uint(7), decoded.Version)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var decoded payload
	require.Error(t, internal.Unmarshal([]byte("not json"), &decoded))
}
