// Package internal holds the payload codec shared by the caching tier.
package internal

import (
	"encoding/json"

	"google.golang.org/protobuf/proto"
)

// Marshal encodes a cache payload. Byte slices, strings and raw JSON pass
// through untouched; proto messages use proto encoding; everything else is
// JSON.
func Marshal(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v.MarshalJSON()
	case string:
		return []byte(v), nil
	default:
		protoMsg, ok := payload.(proto.Message)
		if ok {
			return proto.Marshal(protoMsg)
		}

		return json.Marshal(payload)
	}
}

// Unmarshal decodes data into holder, mirroring the encodings of Marshal.
// holder must be a pointer.
func Unmarshal(data []byte, holder any) error {
	switch v := holder.(type) {
	case *[]byte:
		*v = data
		return nil
	case *json.RawMessage:
		*v = json.RawMessage(data)
		return nil
	case *string:
		*v = string(data)
		return nil
	default:
		if protoMsg, ok := holder.(proto.Message); ok {
			return proto.Unmarshal(data, protoMsg)
		}

		return json.Unmarshal(data, holder)
	}
}
