package codec

import (
	"encoding/json"
	"io"
)

// JSONCodec uses Go's standard library encoding/json.
// json.Decoder already reads exactly one value per Decode and buffers the rest,
// which is the framing the control socket relies on.
type JSONCodec struct{}

// Encode returns the compact encoding of v with no trailing newline.
func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) NewDecoder(r io.Reader) Decoder {
	return json.NewDecoder(r)
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
