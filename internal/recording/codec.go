package recording

import (
	"encoding/base64"
	"fmt"

	"github.com/louisbranch/inference-mock/internal/protocol/inference"
	"google.golang.org/protobuf/proto"
)

var deterministic = proto.MarshalOptions{Deterministic: true}

// Encode serializes a captured message for storage.
func Encode(msg proto.Message) ([]byte, error) {
	payload, err := deterministic.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.ProtoReflect().Descriptor().FullName(), err)
	}
	return payload, nil
}

// Decode parses a stored payload into msg.
func Decode(payload []byte, msg proto.Message) error {
	if err := proto.Unmarshal(payload, msg); err != nil {
		return fmt.Errorf("decode %s: %w", msg.ProtoReflect().Descriptor().FullName(), err)
	}
	return nil
}

// ConfigKey returns the canonical key a configuration request is recorded
// under. Equal requests always produce equal keys.
func ConfigKey(req *inference.ModelConfigRequest) (string, error) {
	payload, err := Encode(req)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}
