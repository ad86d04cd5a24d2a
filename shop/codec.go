package shop

import (
	"encoding/json"
	"fmt"

	grpcEncoding "google.golang.org/grpc/encoding"
	_ "google.golang.org/grpc/encoding/proto" // ensure default proto codec is registered first
	"google.golang.org/protobuf/proto"
)

func init() {
	// Replace the default proto codec with a wrapper that JSON-encodes shop
	// messages and delegates protobuf messages to proto.Marshal.
	grpcEncoding.RegisterCodec(codec{})
}

// codec handles shop messages via JSON and everything else via proto.
type codec struct{}

func (codec) Name() string { return "proto" }

func (codec) Marshal(v any) ([]byte, error) {
	if _, ok := v.(shopMsg); ok {
		return json.Marshal(v)
	}
	if m, ok := v.(proto.Message); ok {
		return proto.Marshal(m)
	}
	return nil, fmt.Errorf("shop codec: unsupported message type %T", v)
}

func (codec) Unmarshal(data []byte, v any) error {
	if _, ok := v.(shopMsg); ok {
		return json.Unmarshal(data, v)
	}
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}
	return fmt.Errorf("shop codec: unsupported message type %T", v)
}
