package record

// Record is a string-keyed bag of values with typed accessors.
// It carries graph metadata, edge values, and plain dataflow inputs.
// All accessor methods return default values if the key is missing
// or the value cannot be converted to the requested type.
//
// A nil Record is valid and behaves as an empty one.
type Record map[string]any

// As converts v to a Record when it is a Record or a map[string]any.
func As(v any) (Record, bool) {
	switch val := v.(type) {
	case Record:
		return val, true
	case map[string]any:
		return Record(val), true
	}
	return nil, false
}

// Get returns the raw value for key and whether it exists.
func (r Record) Get(key string) (any, bool) {
	v, ok := r[key]
	return v, ok
}

// String returns the string value for key, or defaultVal if missing or not a string.
func (r Record) String(key, defaultVal string) string {
	v, ok := r[key]
	if !ok {
		return defaultVal
	}
	if s, ok := v.(string); ok {
		return s
	}
	return defaultVal
}

// Bool returns the boolean value for key, or defaultVal if missing or not a bool.
func (r Record) Bool(key string, defaultVal bool) bool {
	if b, ok := r[key].(bool); ok {
		return b
	}
	return defaultVal
}

// Int returns the integer value for key, or defaultVal if missing or not convertible.
// float64 values convert only when they have no fractional part, which is how
// JSON documents deliver integers.
func (r Record) Int(key string, defaultVal int) int {
	v, ok := r[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return defaultVal
}

// Float returns the float64 value for key, or defaultVal if missing or not convertible.
func (r Record) Float(key string, defaultVal float64) float64 {
	switch val := r[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	}
	return defaultVal
}

// Slice returns the list value for key as []any, or nil if missing or not a list.
func (r Record) Slice(key string) []any {
	switch val := r[key].(type) {
	case []any:
		return val
	case []Record:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Record(item)
		}
		return out
	}
	return nil
}

// Record returns the nested record for key, or nil if missing or not a map.
func (r Record) Record(key string) Record {
	nested, _ := As(r[key])
	return nested
}

// Any returns the raw value for key, or defaultVal if missing.
func (r Record) Any(key string, defaultVal any) any {
	v, ok := r[key]
	if !ok {
		return defaultVal
	}
	return v
}

// Has returns true if the key exists in the record.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Clone returns a shallow copy. Cloning a nil Record yields an empty one.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
