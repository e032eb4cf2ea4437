package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// OriginalSuffix is appended to a signal name to carry the original string
// of a categorical value next to its numeric index.
const OriginalSuffix = "_original"

// TimestampKey holds the epoch milliseconds in the flat point form.
const TimestampKey = "timestamp"

// FlatPoint is one chart-ready data point. It serializes to a flat object:
// {"timestamp": <epoch ms>, "<signal>": <number>, "<signal>_original": "<string>"}.
type FlatPoint struct {
	Timestamp int64
	Values    map[string]float64
	Originals map[string]string
}

// Time returns the point timestamp as a time.Time in UTC.
func (p FlatPoint) Time() time.Time {
	return time.UnixMilli(p.Timestamp).UTC()
}

// Value returns the numeric value of a signal.
func (p FlatPoint) Value(signal string) (float64, bool) {
	v, ok := p.Values[signal]
	return v, ok
}

// Original returns the original string of a categorical signal value.
func (p FlatPoint) Original(signal string) (string, bool) {
	s, ok := p.Originals[signal]
	return s, ok
}

// Flat returns the point as a single flat map.
func (p FlatPoint) Flat() map[string]interface{} {
	m := make(map[string]interface{}, 1+len(p.Values)+len(p.Originals))
	m[TimestampKey] = p.Timestamp
	for k, v := range p.Values {
		m[k] = v
	}
	for k, s := range p.Originals {
		m[k+OriginalSuffix] = s
	}
	return m
}

// MarshalJSON writes the flat representation.
func (p FlatPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Flat())
}

// UnmarshalJSON reads the flat representation.
func (p *FlatPoint) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return p.fromFlat(raw)
}

// EncodeMsgpack writes the flat representation with sorted keys.
func (p FlatPoint) EncodeMsgpack(enc *msgpack.Encoder) error {
	keys := make([]string, 0, len(p.Values)+len(p.Originals))
	for k := range p.Values {
		keys = append(keys, k)
	}
	for k := range p.Originals {
		keys = append(keys, k+OriginalSuffix)
	}
	sort.Strings(keys)

	if err := enc.EncodeMapLen(len(keys) + 1); err != nil {
		return err
	}
	if err := enc.EncodeString(TimestampKey); err != nil {
		return err
	}
	if err := enc.EncodeInt(p.Timestamp); err != nil {
		return err
	}
	for _, k := range keys {
		if err := enc.EncodeString(k); err != nil {
			return err
		}
		if name, ok := strings.CutSuffix(k, OriginalSuffix); ok {
			if s, ok := p.Originals[name]; ok {
				if err := enc.EncodeString(s); err != nil {
					return err
				}
				continue
			}
		}
		if err := enc.EncodeFloat64(p.Values[k]); err != nil {
			return err
		}
	}
	return nil
}

// DecodeMsgpack reads the flat representation.
func (p *FlatPoint) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	raw := make(map[string]interface{}, n)
	for i := 0; i < n; i++ {
		k, err := dec.DecodeString()
		if err != nil {
			return err
		}
		v, err := dec.DecodeInterface()
		if err != nil {
			return err
		}
		raw[k] = v
	}
	return p.fromFlat(raw)
}

func (p *FlatPoint) fromFlat(raw map[string]interface{}) error {
	p.Values = make(map[string]float64, len(raw))
	p.Originals = nil
	for k, v := range raw {
		if k == TimestampKey {
			f, ok := toFloat(v)
			if !ok {
				return fmt.Errorf("timestamp is not a number: %v", v)
			}
			p.Timestamp = int64(f)
			continue
		}
		if s, ok := v.(string); ok {
			if name, cut := strings.CutSuffix(k, OriginalSuffix); cut {
				if p.Originals == nil {
					p.Originals = make(map[string]string)
				}
				p.Originals[name] = s
				continue
			}
			return fmt.Errorf("field %q holds a string without %s suffix", k, OriginalSuffix)
		}
		f, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("field %q is not a number: %v", k, v)
		}
		p.Values[k] = f
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// ChartColors is the palette signals are coloured from, round-robin.
var ChartColors = []string{
	"#3B82F6", "#10B981", "#F97316", "#8B5CF6", "#EC4899",
	"#14B8A6", "#F43F5E", "#6366F1", "#84CC16", "#0EA5E9",
}

// Signal is the chart-side view of one pattern.
type Signal struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Pattern Pattern `json:"pattern"`
	Color   string  `json:"color"`
	Visible bool    `json:"visible"`
}

// TimeSegment is a contiguous slice of the formatted series.
type TimeSegment struct {
	ID        string      `json:"id"`
	StartTime time.Time   `json:"startTime"`
	EndTime   time.Time   `json:"endTime"`
	Data      []FlatPoint `json:"data"`
}

// Panel groups signals rendered on the same chart.
type Panel struct {
	ID      string   `json:"id"`
	Signals []string `json:"signals"`
}

// ChartType selects how a panel renders. It never affects the data.
type ChartType string

const (
	ChartTypeLine ChartType = "line"
	ChartTypeBar  ChartType = "bar"
)

// Valid reports whether c is a known chart type.
func (c ChartType) Valid() bool {
	return c == ChartTypeLine || c == ChartTypeBar
}

// TimeRange represents a time window.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies within the range, both ends included.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// DataTimeRange describes the extent of the loaded data and the currently
// selected window within it.
type DataTimeRange struct {
	Min      time.Time  `json:"min"`
	Max      time.Time  `json:"max"`
	Selected *TimeRange `json:"selected,omitempty"`
}
