package models

import (
	"encoding/json"
	"maps"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Document is a caller-defined payload stored in a collection.
// Values are JSON-compatible: strings, bools, numbers, time.Time,
// nested Documents / map[string]any, and slices of those.
type Document map[string]any

const (
	CollectionStrategies = "strategies"
	CollectionTrades     = "trades"
)

// Reserved field names.
const (
	FieldVersion          = "version"
	FieldUpdatedAt        = "updated_at"
	FieldLoggedAt         = "logged_at"
	FieldEcosystemVersion = "ecosystem_version"
	FieldStrategyID       = "strategy_id"
	FieldPerformance      = "performance"
	FieldInitialCapital   = "initial_capital"
)

// EcosystemVersion tags every logged trade with the schema it was written under.
const EcosystemVersion = "aete_v1"

// Clone returns a copy of d. Nested maps and slices are copied too, so the
// clone can be mutated without touching the caller's data.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return t.Clone()
	case map[string]any:
		return map[string]any(Document(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Merge overwrites the top-level fields of d with those of patch.
// Fields absent from patch are preserved; nested maps are replaced whole.
func (d Document) Merge(patch Document) Document {
	out := d.Clone()
	if out == nil {
		out = make(Document, len(patch))
	}
	maps.Copy(out, patch.Clone())
	return out
}

// String returns the field as a string if it holds one.
func (d Document) String(key string) (string, bool) {
	s, ok := d[key].(string)
	return s, ok
}

// Sub returns a nested map field as a Document.
func (d Document) Sub(key string) (Document, bool) {
	switch t := d[key].(type) {
	case Document:
		return t, true
	case map[string]any:
		return Document(t), true
	}
	return nil, false
}

// Decimal reads a numeric field. Strings are accepted when they parse as a
// decimal, so payloads that carry prices as text still aggregate exactly.
// NaN and infinities are not numbers here and report false.
func (d Document) Decimal(key string) (decimal.Decimal, bool) {
	switch t := d[key].(type) {
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int32:
		return decimal.NewFromInt32(t), true
	case int64:
		return decimal.NewFromInt(t), true
	case float32:
		if !finite(float64(t)) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat32(t), true
	case float64:
		if !finite(t) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(t), true
	case json.Number:
		v, err := decimal.NewFromString(t.String())
		return v, err == nil
	case string:
		v, err := decimal.NewFromString(t)
		return v, err == nil
	}
	return decimal.Zero, false
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Float reads a numeric field as float64.
func (d Document) Float(key string) (float64, bool) {
	v, ok := d.Decimal(key)
	if !ok {
		return 0, false
	}
	return v.InexactFloat64(), true
}

// Int reads an integral numeric field.
func (d Document) Int(key string) (int64, bool) {
	switch t := d[key].(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		if t == float64(int64(t)) {
			return int64(t), true
		}
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	}
	return 0, false
}

// Time reads a timestamp field. Firestore and the memory store return
// time.Time; JSON-backed stores return RFC3339 strings.
func (d Document) Time(key string) (time.Time, bool) {
	switch t := d[key].(type) {
	case time.Time:
		return t, true
	case string:
		ts, err := time.Parse(time.RFC3339Nano, t)
		return ts, err == nil
	}
	return time.Time{}, false
}

// NormalizeNumbers converts json.Number values (from a decoder with
// UseNumber) into int64 when integral and float64 otherwise.
func NormalizeNumbers(v any) any {
	switch t := v.(type) {
	case Document:
		for k, e := range t {
			t[k] = NormalizeNumbers(e)
		}
		return t
	case map[string]any:
		for k, e := range t {
			t[k] = NormalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = NormalizeNumbers(e)
		}
		return t
	case json.Number:
		if n, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	}
	return v
}
