package codec

import (
	"encoding/json"
	"strings"
)

const (
	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/x-protobuf"
)

// Codec encodes and decodes API payloads
type Codec interface {
	// Encode encodes a value to bytes
	Encode(v any) ([]byte, error)

	// Decode decodes bytes to a value
	Decode(data []byte, v any) error

	// Name returns the codec name
	Name() string

	// ContentType is the media type written on responses
	ContentType() string
}

// ForAccept picks the codec for an Accept header value. Anything that does
// not ask for protobuf gets JSON.
func ForAccept(accept string) Codec {
	if wantsProtobuf(accept) {
		return &ProtobufCodec{}
	}
	return &JSONCodec{}
}

// ForContentType picks the codec for a request body
func ForContentType(contentType string) Codec {
	return ForAccept(contentType)
}

func wantsProtobuf(mediaTypes string) bool {
	for _, part := range strings.Split(mediaTypes, ",") {
		mt, _, _ := strings.Cut(part, ";")
		switch strings.TrimSpace(mt) {
		case ContentTypeProtobuf, "application/protobuf":
			return true
		}
	}
	return false
}

// JSONCodec implements JSON encoding/decoding
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Name() string {
	return "json"
}

func (c *JSONCodec) ContentType() string {
	return ContentTypeJSON
}
