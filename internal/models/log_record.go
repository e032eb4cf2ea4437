package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	KindNumeric ValueKind = iota + 1
	KindString
)

// String returns the kind name.
func (k ValueKind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// UnresolvedIndex marks a categorical value that has no intern-table entry.
const UnresolvedIndex = -1

// Value is a captured signal value: either a number or a categorical string.
// Index holds the intern-table index of a string once it has been resolved.
type Value struct {
	Kind  ValueKind
	Num   float64
	Str   string
	Index int
}

// NumericValue wraps a number.
func NumericValue(f float64) Value {
	return Value{Kind: KindNumeric, Num: f}
}

// StringValue wraps a categorical string that has not been interned yet.
func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s, Index: UnresolvedIndex}
}

// InternedValue wraps a categorical string together with its intern index.
func InternedValue(s string, index int) Value {
	return Value{Kind: KindString, Str: s, Index: index}
}

// IsNumeric reports whether v holds a number.
func (v Value) IsNumeric() bool { return v.Kind == KindNumeric }

// String renders the value the way it appeared in the log.
func (v Value) String() string {
	switch v.Kind {
	case KindNumeric:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindString:
		return v.Str
	default:
		return ""
	}
}

// MarshalJSON encodes the value as a bare JSON number or string.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumeric:
		return json.Marshal(v.Num)
	case KindString:
		return json.Marshal(v.Str)
	default:
		return nil, fmt.Errorf("cannot marshal value of kind %d", v.Kind)
	}
}

// LogRecord is one emitted line of the extraction: a timestamp plus the
// values of every signal known at that point, including carried-forward ones.
type LogRecord struct {
	Timestamp time.Time        `json:"timestamp"`
	Values    map[string]Value `json:"values"`
}
