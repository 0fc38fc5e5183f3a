package safefile

import (
	json "github.com/goccy/go-json"
)

// Codec converts payload values to and from the managed file's bytes.
// The manager itself is content-format-agnostic; callers may supply any
// serializer/deserializer pair, though JSON is the expected one.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec returns the default codec: indented JSON with a trailing
// newline.
func JSONCodec() Codec { return jsonCodec{} }

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
