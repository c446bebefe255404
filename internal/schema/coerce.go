package schema

import (
	"fmt"
	"math"
)

// Coerce converts a loosely typed value, as decoded from YAML or JSON, into
// the storage type of the named field: int64 for ints, []int64 and []string
// for arrays, *Record for set entries.
func (c *Class) Coerce(name string, value any) (any, error) {
	f, ok := c.Field(name)
	if !ok {
		return nil, fmt.Errorf("%s has no field %q", c.Name, name)
	}

	switch f.Kind {
	case KindString:
		s, ok := value.(string)
		if !ok {
			return nil, typeError(c, f, value)
		}
		return s, nil
	case KindInt:
		n, ok := toInt64(value)
		if !ok {
			return nil, typeError(c, f, value)
		}
		return n, nil
	case KindBool:
		b, ok := value.(bool)
		if !ok {
			return nil, typeError(c, f, value)
		}
		return b, nil
	case KindInts:
		items, ok := value.([]any)
		if !ok {
			return nil, typeError(c, f, value)
		}
		out := make([]int64, len(items))
		for i, item := range items {
			if out[i], ok = toInt64(item); !ok {
				return nil, typeError(c, f, value)
			}
		}
		return out, nil
	case KindStrings:
		items, ok := value.([]any)
		if !ok {
			return nil, typeError(c, f, value)
		}
		out := make([]string, len(items))
		for i, item := range items {
			if out[i], ok = item.(string); !ok {
				return nil, typeError(c, f, value)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s.%s: %s fields are changed through their own events", c.Name, name, f.Kind)
	}
}

// CoerceElement converts value into an element of the named array field.
func (c *Class) CoerceElement(name string, value any) (any, error) {
	f, ok := c.Field(name)
	if !ok {
		return nil, fmt.Errorf("%s has no field %q", c.Name, name)
	}
	switch f.Kind {
	case KindInts:
		if n, ok := toInt64(value); ok {
			return n, nil
		}
	case KindStrings:
		if s, ok := value.(string); ok {
			return s, nil
		}
	default:
		return nil, fmt.Errorf("%s.%s is not an array", c.Name, name)
	}
	return nil, typeError(c, f, value)
}

// CoerceRecord converts a map with an "id" key, and optionally a "data"
// map, into a Record for the named set field.
func (c *Class) CoerceRecord(name string, value any) (*Record, error) {
	f, ok := c.Field(name)
	if !ok || f.Kind != KindSet {
		return nil, fmt.Errorf("%s.%s is not a set", c.Name, name)
	}
	m, ok := value.(map[string]any)
	if !ok {
		return nil, typeError(c, f, value)
	}
	id, ok := m["id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("%s.%s: record needs a string id", c.Name, name)
	}
	rec := &Record{ID: id}
	if data, ok := m["data"].(map[string]any); ok {
		rec.Data = data
	}
	return rec, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func typeError(c *Class, f Field, value any) error {
	return fmt.Errorf("%s.%s: %T does not fit a %s field", c.Name, f.Name, value, f.Kind)
}
