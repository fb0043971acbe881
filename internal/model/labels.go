package model

import (
	"sort"
	"strings"
)

// LabelMap is a set of label key-value pairs attached to monitors, alerts,
// and matchers. Keys are normalized before comparison or storage.
type LabelMap map[string]string

// Normalize returns a copy with keys lowercased and trimmed, values trimmed,
// and empty keys or values dropped. The receiver is not mutated.
func (m LabelMap) Normalize() LabelMap {
	if len(m) == 0 {
		return LabelMap{}
	}
	out := make(LabelMap, len(m))
	for rawKey, rawVal := range m {
		key := strings.ToLower(strings.TrimSpace(rawKey))
		val := strings.TrimSpace(rawVal)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	return out
}

// Canonical returns a stable string form of the labels for use as a map key:
// sorted key=value pairs joined by '|'. {a=1,b=2} and {b=2,a=1} produce the
// same key.
func (m LabelMap) Canonical() string {
	if len(m) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.Grow(len(keys) * 8)
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(m[k])
	}
	return b.String()
}

// Subset reports whether every pair in m is present in other.
func (m LabelMap) Subset(other LabelMap) bool {
	for k, v := range m {
		if other[k] != v {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy of m, or nil for a nil map.
func (m LabelMap) Clone() LabelMap {
	if m == nil {
		return nil
	}
	out := make(LabelMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
