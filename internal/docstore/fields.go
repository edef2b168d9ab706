package docstore

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Fields holds a document's decoded JSON. Accessors report false when a
// field is absent or holds a value of the wrong type.
type Fields map[string]any

// Timestamp is the stored form of a point in time.
type Timestamp struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int32 `json:"nanoseconds"`
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanoseconds: int32(t.Nanosecond())}
}

func (t Timestamp) Time() time.Time {
	return time.Unix(t.Seconds, int64(t.Nanoseconds)).UTC()
}

func (f Fields) Text(key string) (string, bool) {
	s, ok := f[key].(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func (f Fields) Number(key string) (float64, bool) {
	switch v := f[key].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func (f Fields) Strings(key string) ([]string, bool) {
	raw, ok := f[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out, true
}

// Stored times outside years 1 to 9999 are treated as absent.
const (
	minUnixSeconds = -62135596800
	maxUnixSeconds = 253402300799
)

// Time reads a timestamp stored as {"seconds","nanoseconds"} (or the
// "_seconds" export form), an RFC 3339 string, or epoch milliseconds.
func (f Fields) Time(key string) (time.Time, bool) {
	switch v := f[key].(type) {
	case map[string]any:
		secs, ok := numberIn(v, "seconds", "_seconds")
		if !ok || math.IsNaN(secs) || secs < minUnixSeconds || secs > maxUnixSeconds {
			return time.Time{}, false
		}
		nanos, _ := numberIn(v, "nanoseconds", "_nanoseconds")
		if math.IsNaN(nanos) || nanos < 0 || nanos >= 1e9 {
			nanos = 0
		}
		return Timestamp{Seconds: int64(secs), Nanoseconds: int32(nanos)}.Time(), true
	case string:
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v))
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	case float64:
		if math.IsNaN(v) || v <= 0 || v > maxUnixSeconds*1000 {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(v)).UTC(), true
	default:
		return time.Time{}, false
	}
}

func numberIn(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if n, ok := m[k].(float64); ok {
			return n, true
		}
	}
	return 0, false
}
