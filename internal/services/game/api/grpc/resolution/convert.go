package resolution

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// toStruct converts a JSON-tagged value to a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal struct: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal struct: %w", err)
	}
	return structpb.NewStruct(fields)
}

// fromStruct decodes a protobuf Struct into a JSON-tagged value.
func fromStruct(s *structpb.Struct, out any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("marshal struct: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode struct: %w", err)
	}
	return nil
}
