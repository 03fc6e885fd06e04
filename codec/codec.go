// Package codec provides the wire encoding used on a control socket.
//
// Messages carry no length prefix, so a Codec must expose a streaming decoder
// that stops after one complete value and keeps any following bytes for the
// next call.
package codec

import "io"

type CodecType byte

const (
	CodecTypeJSON CodecType = 0
)

// Decoder pulls one complete value per Decode call from an underlying stream.
type Decoder interface {
	Decode(v any) error
	// Buffered returns bytes already read from the stream but not yet decoded.
	Buffered() io.Reader
}

type Codec interface {
	Encode(v any) ([]byte, error)
	NewDecoder(r io.Reader) Decoder
	Type() CodecType
}

func GetCodec(codecType CodecType) Codec {
	return &JSONCodec{}
}
