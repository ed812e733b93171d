// Package task models remote task records and extracts canonical fields from them.
//
// The remote schema is not controlled by this client, so a Record is kept as the
// decoded JSON object and every logical field is read through an ordered probe.
package task

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record is a task as returned by the remote API.
type Record map[string]any

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// String formats the pair as "lat,lon".
func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

// ParseCoordinates parses a "lat,lon" string.
func ParseCoordinates(s string) (Coordinates, bool) {
	return coordsFromString(s)
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ID returns the record identifier. See IdentifierOf.
func (r Record) ID() (string, error) {
	return IdentifierOf(r)
}

// Title returns the task title, or "" when absent.
func (r Record) Title() string {
	s, _ := r["title"].(string)
	return s
}

// Completed reports the completion flag. Booleans transmitted as strings are accepted.
func (r Record) Completed() bool {
	switch v := r["completed"].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	}
	return false
}

// SetCompleted sets the completion flag.
func (r Record) SetCompleted(done bool) {
	r["completed"] = done
}

// asMap returns v as a JSON object when it is one.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return m, true
	}
	return nil, false
}

// present reports whether key exists in m with a non-null value.
func present(m map[string]any, key string) (any, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// firstPresent returns the first non-null value among keys.
func firstPresent(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := present(m, k); ok {
			return v, true
		}
	}
	return nil, false
}

// number coerces v to a finite float64. Strings are parsed; non-finite values are absent.
func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// stringify renders an identifier value the way it is displayed by the API.
func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	}
	return fmt.Sprint(v)
}
