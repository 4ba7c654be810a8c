package cache

import (
	"encoding/json"

	"github.com/golang/snappy"
)

// Serializer converts cached values to and from their persisted byte form.
// Implementations must round-trip any value they accept.
type Serializer interface {
	// Encode renders a value to bytes. A nil value encodes to nil.
	Encode(value any) ([]byte, error)
	// Decode populates dest from bytes. Empty input leaves dest untouched.
	Decode(data []byte, dest any) error
}

// JSONSerializer is the default codec.
type JSONSerializer struct{}

// Encode implements Serializer.
func (JSONSerializer) Encode(value any) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}

// Decode implements Serializer.
func (JSONSerializer) Decode(data []byte, dest any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}

// SnappySerializer compresses the output of an inner codec. It is selected
// by the engine's Compression option.
type SnappySerializer struct {
	Inner Serializer
}

// Encode implements Serializer.
func (s SnappySerializer) Encode(value any) ([]byte, error) {
	data, err := s.inner().Encode(value)
	if err != nil || data == nil {
		return nil, err
	}
	return snappy.Encode(nil, data), nil
}

// Decode implements Serializer.
func (s SnappySerializer) Decode(data []byte, dest any) error {
	if len(data) == 0 {
		return nil
	}
	decoded, err := snappy.Decode(nil, data)
	if err != nil {
		return err
	}
	return s.inner().Decode(decoded, dest)
}

func (s SnappySerializer) inner() Serializer {
	if s.Inner == nil {
		return JSONSerializer{}
	}
	return s.Inner
}
