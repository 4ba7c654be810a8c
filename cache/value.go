package cache

import "errors"

// ErrNoValue is returned when decoding a Value that carries no payload,
// typically from indexing a batch result with a key that was not found.
var ErrNoValue = errors.New("cache: no value")

// Value is a cached payload whose decoding is deferred to the caller,
// since a batch read cannot know the destination type of each entry.
// Its zero value is empty and decodes to ErrNoValue.
type Value struct {
	raw   []byte
	codec Serializer
}

// Decode populates dest from the stored payload.
func (v Value) Decode(dest any) error {
	if v.codec == nil {
		return ErrNoValue
	}
	return v.codec.Decode(v.raw, dest)
}

// Bytes returns the payload in its persisted, serialized form.
func (v Value) Bytes() []byte {
	return v.raw
}
