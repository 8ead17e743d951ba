// Package grpcjson регистрирует JSON-кодек gRPC под content-subtype "json".
//
// Контракты api/*: обычные Go-структуры, поэтому сообщения передаются как JSON,
// а клиенты выставляют grpc.CallContentSubtype(Name).
package grpcjson

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// Name: content-subtype кодека: application/grpc+json.
const Name = "json"

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec реализует encoding.Codec поверх encoding/json.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("grpcjson marshal %T: %w", v, err)
	}
	return data, nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("grpcjson unmarshal %T: %w", v, err)
	}
	return nil
}

func (Codec) Name() string {
	return Name
}

// CallOption принудительно выбирает JSON-кодек для вызова.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(Name)
}

// WithDefaultCallOptions: DialOption, включающий JSON-кодек для всех вызовов соединения.
func WithDefaultCallOptions() grpc.DialOption {
	return grpc.WithDefaultCallOptions(CallOption())
}
