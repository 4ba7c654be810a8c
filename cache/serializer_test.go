package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags"`
}

func TestJSONSerializerRoundTrip(t *testing.T) {
	codec := JSONSerializer{}

	original := payload{Name: "widget", Count: 3, Tags: []string{"a", "b"}}
	data, err := codec.Encode(original)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	var decoded payload
	require.NoError(t, codec.Decode(data, &decoded))
	require.Equal(t, original, decoded)
}

func TestJSONSerializerNilValue(t *testing.T) {
	codec := JSONSerializer{}

	data, err := codec.Encode(nil)
	require.NoError(t, err)
	require.Nil(t, data)

	var decoded payload
	require.NoError(t, codec.Decode(nil, &decoded))
	require.Equal(t, payload{}, decoded)
}

func TestSnappySerializerRoundTrip(t *testing.T) {
	codec := SnappySerializer{Inner: JSONSerializer{}}

	original := payload{Name: "widget", Count: 42}
	data, err := codec.Encode(original)
	require.NoError(t, err)

	var decoded payload
	require.NoError(t, codec.Decode(data, &decoded))
	require.Equal(t, original, decoded)
}

func TestSnappySerializerDefaultsInner(t *testing.T) {
	codec := SnappySerializer{}

	data, err := codec.Encode("hello")
	require.NoError(t, err)

	var decoded string
	require.NoError(t, codec.Decode(data, &decoded))
	require.Equal(t, "hello", decoded)
}
