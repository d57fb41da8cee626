package fields

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	json "github.com/goccy/go-json"
)

var ErrConversion = errors.New("value is not convertible to a structured value")

// Pair is a single key/value given to SetMany.
type Pair struct {
	Key   string
	Value any
}

func KV(key string, value any) Pair {
	return Pair{Key: key, Value: value}
}

// ToValue converts v into JSON-like form: nil, bool, string, a number,
// []any or map[string]any. Scalars already in that form are returned as is,
// []any and map[string]any are converted element by element, everything
// else is round-tripped through JSON. Non-finite floats are rejected.
func ToValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, string, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return v, nil
	case float32:
		if err := checkFinite(float64(t)); err != nil {
			return nil, err
		}
		return v, nil
	case float64:
		if err := checkFinite(t); err != nil {
			return nil, err
		}
		return v, nil
	case []any:
		out := make([]any, len(t))
		for i, elem := range t {
			cv, err := ToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = cv
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, elem := range t {
			cv, err := ToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = cv
		}
		return out, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	return out, nil
}

func checkFinite(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: non-finite number %v", ErrConversion, f)
	}
	return nil
}

func fieldError(key string, err error) error {
	return fmt.Errorf("field %q: %w", key, err)
}
