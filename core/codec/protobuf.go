package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtobufCodec implements Protocol Buffers encoding/decoding. Values that are
// not proto messages go through their JSON form: arrays are written as
// google.protobuf.ListValue, objects as google.protobuf.Struct and anything
// else as google.protobuf.Value.
type ProtobufCodec struct{}

func (c *ProtobufCodec) Encode(v any) ([]byte, error) {
	if msg, ok := v.(proto.Message); ok {
		return proto.Marshal(msg)
	}

	value, err := ToValue(v)
	if err != nil {
		return nil, err
	}
	switch kind := value.GetKind().(type) {
	case *structpb.Value_ListValue:
		return proto.Marshal(kind.ListValue)
	case *structpb.Value_StructValue:
		return proto.Marshal(kind.StructValue)
	}
	return proto.Marshal(value)
}

func (c *ProtobufCodec) Decode(data []byte, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("value must implement proto.Message interface, got %T", v)
	}
	return proto.Unmarshal(data, msg)
}

func (c *ProtobufCodec) Name() string {
	return "protobuf"
}

func (c *ProtobufCodec) ContentType() string {
	return ContentTypeProtobuf
}

// ToValue converts any JSON-encodable value to a structpb.Value
func ToValue(v any) (*structpb.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: encode %T: %w", v, err)
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("codec: normalize %T: %w", v, err)
	}

	value, err := structpb.NewValue(generic)
	if err != nil {
		return nil, fmt.Errorf("codec: convert %T: %w", v, err)
	}
	return value, nil
}
