// Package codec registers a JSON codec for gRPC. Services whose messages are plain Go structs select it
// per call with grpc.CallContentSubtype(codec.Name); the server picks it from the content-subtype.
package codec

import (
	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Name is the content-subtype the codec is registered under.
const Name = "json"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSON marshals messages with json-iterator, and proto messages with protojson.
type JSON struct{}

func (JSON) Name() string { return Name }

func (JSON) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return protojson.Marshal(m)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %T", v)
	}
	return b, nil
}

func (JSON) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return protojson.Unmarshal(data, m)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "unmarshal %T", v)
	}
	return nil
}

// Marshal encodes v with the registered codec rules. Exposed for the HTTP gateway and log payloads.
func Marshal(v any) ([]byte, error) { return JSON{}.Marshal(v) }

// Unmarshal decodes data into v with the registered codec rules.
func Unmarshal(data []byte, v any) error { return JSON{}.Unmarshal(data, v) }

func init() {
	encoding.RegisterCodec(JSON{})
}
