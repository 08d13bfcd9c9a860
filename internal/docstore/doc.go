package docstore

import (
	"encoding/json"
	"time"
)

// TimeLayout is the fixed-width UTC layout backends without a native
// timestamp type store times in, so that lexical order matches time order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// String returns the string at key, or "".
func (d Doc) String(key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

// Int64 returns the number at key as int64, or 0.
func (d Doc) Int64(key string) int64 {
	switch v := d[key].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float32:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
	}
	return 0
}

// Float64 returns the number at key as float64, or 0.
func (d Doc) Float64(key string) float64 {
	switch v := d[key].(type) {
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return 0
}

// Bool returns the bool at key, or false.
func (d Doc) Bool(key string) bool {
	v, _ := d[key].(bool)
	return v
}

// Time returns the timestamp at key, or the zero time.
func (d Doc) Time(key string) time.Time {
	switch v := d[key].(type) {
	case time.Time:
		return v.UTC()
	case *time.Time:
		if v != nil {
			return v.UTC()
		}
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Strings returns the string list at key, skipping non-string entries.
func (d Doc) Strings(key string) []string {
	switch v := d[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Has reports whether key is present.
func (d Doc) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Clone returns a shallow copy.
func (d Doc) Clone() Doc {
	out := make(Doc, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Merge returns a copy of d with fields applied on top.
func (d Doc) Merge(fields Doc) Doc {
	out := d.Clone()
	for k, v := range fields {
		out[k] = v
	}
	return out
}
