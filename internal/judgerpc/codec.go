package judgerpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// toStruct converts v to a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	st := &structpb.Struct{}
	if err := st.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("failed to build struct: %w", err)
	}
	return st, nil
}

// fromStruct decodes the JSON form of st into v.
func fromStruct(st *structpb.Struct, v any) error {
	data, err := st.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode struct: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}
