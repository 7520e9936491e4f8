package event

import (
	"fmt"
	"strconv"

	"github.com/c360/meshview/model"
	"github.com/c360/meshview/pkg/timestamp"
)

// Raw is an untyped decoded device record as delivered by the transport.
// Field extraction runs through the helpers below because JSON decoding
// yields float64 for every number and device firmware is inconsistent
// about which fields it populates.
type Raw map[string]any

func (r Raw) str(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

func (r Raw) intPtr(key string) *int {
	switch v := r[key].(type) {
	case float64:
		n := int(v)
		return &n
	case int:
		return &v
	case int64:
		n := int(v)
		return &n
	}
	return nil
}

func (r Raw) floatPtr(key string) *float64 {
	switch v := r[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	}
	return nil
}

func (r Raw) int64Ptr(key string) *int64 {
	switch v := r[key].(type) {
	case float64:
		n := int64(v)
		return &n
	case int:
		n := int64(v)
		return &n
	case int64:
		return &v
	}
	return nil
}

func (r Raw) intOr(key string, fallback int) int {
	if p := r.intPtr(key); p != nil {
		return *p
	}
	return fallback
}

func (r Raw) sub(key string) Raw {
	if m, ok := r[key].(map[string]any); ok {
		return Raw(m)
	}
	return nil
}

// timestampMs pulls an event timestamp from the record, accepting
// milliseconds, seconds, or RFC 3339 strings. Zero means unset.
func (r Raw) timestampMs(key string) int64 {
	v, ok := r[key]
	if !ok {
		return 0
	}
	return timestamp.Parse(v)
}

// scalars copies the JSON-safe scalar fields of the record, stringifying
// lists and nested objects instead of dropping them.
func (r Raw) scalars() map[string]any {
	safe := make(map[string]any, len(r))
	for k, v := range r {
		switch v.(type) {
		case string, float64, int, int64, bool, nil:
			safe[k] = v
		default:
			safe[k] = fmt.Sprintf("%v", v)
		}
	}
	return safe
}

// normalizeID canonicalizes a destination id: the protocol's reserved
// all-nodes markers collapse to the single broadcast identifier.
func normalizeID(id string) string {
	if id == "^all" || id == "4294967295" {
		return model.BroadcastID
	}
	return id
}
