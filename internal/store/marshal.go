package store

import (
	"fmt"

	"github.com/roach88/tessera/internal/ir"
)

// marshalFields converts field values to canonical JSON TEXT for storage.
func marshalFields(fields ir.IRObject) (string, error) {
	data, err := ir.MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

// unmarshalFields parses stored field JSON back into an IRObject.
func unmarshalFields(data string) (ir.IRObject, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("unmarshal fields: expected object, got %s", ir.KindOf(v))
	}
	return obj, nil
}
