package models

import (
	"fmt"
	"time"
)

// CloneFields deep-copies a record's field map into a typed snapshot. It
// walks nested maps and slices explicitly instead of round-tripping through
// serialization, and rejects values that cannot be snapshotted (functions,
// channels) so rollback readiness is decided before any mutation.
func CloneFields(fields map[string]any) (map[string]any, error) {
	if fields == nil {
		return nil, nil
	}

	clone := make(map[string]any, len(fields))

	for key, value := range fields {
		copied, err := cloneValue(value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}

		clone[key] = copied
	}

	return clone, nil
}

func cloneValue(value any) (any, error) {
	switch v := value.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, time.Time:
		return v, nil
	case map[string]any:
		return CloneFields(v)
	case []any:
		clone := make([]any, len(v))

		for i, item := range v {
			copied, err := cloneValue(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}

			clone[i] = copied
		}

		return clone, nil
	case []string:
		clone := make([]string, len(v))
		copy(clone, v)

		return clone, nil
	default:
		if stringer, ok := v.(fmt.Stringer); ok {
			return stringer.String(), nil
		}

		return nil, fmt.Errorf("unsupported field type %T", value)
	}
}
