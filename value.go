// value.go: Remote setting value parsing for Vigil
//
// Remote settings carry arbitrary string payloads. Vigil decodes each payload
// exactly once, at fetch time, into a closed variant so downstream consumers
// never have to re-guess what a value is:
//
//   - Structured: the payload was valid JSON and carries the decoded document
//   - Raw:        the payload was not valid JSON and is kept verbatim
//   - Absent:     the store returned no payload (or an empty one)
//
// Decoding never fails. A payload that does not parse as JSON is not an
// error, it is simply a raw string.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package vigil

import (
	"encoding/json"
)

// ValueKind discriminates the closed set of parsed value shapes.
type ValueKind int

const (
	// ValueAbsent means the store returned no payload for the key.
	ValueAbsent ValueKind = iota

	// ValueRaw means the payload was kept as the original string.
	ValueRaw

	// ValueStructured means the payload was decoded as JSON.
	ValueStructured
)

func (k ValueKind) String() string {
	switch k {
	case ValueAbsent:
		return "absent"
	case ValueRaw:
		return "raw"
	case ValueStructured:
		return "structured"
	default:
		return "unknown"
	}
}

// Value is the parsed payload of one remote setting.
//
// The zero Value is Absent. Values are immutable once constructed; the
// accessors return the second result false when the Value holds a different
// variant, so callers can switch exhaustively on Kind() or probe directly.
type Value struct {
	kind       ValueKind
	raw        string
	structured interface{}
}

// StructuredValue wraps an already-decoded JSON document.
func StructuredValue(v interface{}) Value {
	return Value{kind: ValueStructured, structured: v}
}

// RawValue wraps an undecodable payload verbatim.
func RawValue(s string) Value {
	return Value{kind: ValueRaw, raw: s}
}

// AbsentValue reports a setting that carried no payload.
func AbsentValue() Value {
	return Value{kind: ValueAbsent}
}

// Kind returns the variant this Value holds.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsAbsent reports whether the store returned no payload.
func (v Value) IsAbsent() bool {
	return v.kind == ValueAbsent
}

// Raw returns the verbatim payload string for raw values.
func (v Value) Raw() (string, bool) {
	if v.kind != ValueRaw {
		return "", false
	}
	return v.raw, true
}

// Structured returns the decoded JSON document for structured values.
func (v Value) Structured() (interface{}, bool) {
	if v.kind != ValueStructured {
		return nil, false
	}
	return v.structured, true
}

// Interface flattens the variant for callers that do not care about the
// distinction: the decoded document, the raw string, or nil when absent.
func (v Value) Interface() interface{} {
	switch v.kind {
	case ValueStructured:
		return v.structured
	case ValueRaw:
		return v.raw
	default:
		return nil
	}
}

// MarshalJSON renders the value the way it would appear to a consumer:
// structured documents re-encode, raw payloads become JSON strings, and
// absent values become null. Used by the CLI for display.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueStructured:
		return json.Marshal(v.structured)
	case ValueRaw:
		return json.Marshal(v.raw)
	default:
		return []byte("null"), nil
	}
}

// Entry is the unit of the manager snapshot: one remote setting key with its
// parsed value.
type Entry struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// ParseEntry converts one raw remote setting into an Entry. It never fails:
// a nil or empty payload yields an Absent value, a JSON payload decodes to a
// Structured value, and anything else is preserved as a Raw string.
func ParseEntry(key string, raw *string) Entry {
	return Entry{Key: key, Value: parseValue(raw)}
}

func parseValue(raw *string) Value {
	if raw == nil || *raw == "" {
		return AbsentValue()
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(*raw), &decoded); err != nil {
		// Not structured data. Keep the payload verbatim.
		return RawValue(*raw)
	}
	return StructuredValue(decoded)
}

// copyEntries returns a defensive copy of a snapshot slice so callers can
// never mutate the manager's internal state through the returned slice.
func copyEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}
