package preview

import (
	"sort"
	"time"

	"github.com/keilerkonzept/topk/sliding"
	"github.com/logvision/backend/internal/models"
)

// ValueCount is one ranked categorical value.
type ValueCount struct {
	Value string
	Count uint32
}

// Summary ranks the values of one categorical signal.
type Summary struct {
	Signal string
	Values []ValueCount
}

// TopValues ranks the original strings of each categorical signal over the
// last opts.Window ticks of points. Numeric signals are skipped. Points are
// expected in timestamp order.
func TopValues(points []models.FlatPoint, signals []models.Signal, opts Options) []Summary {
	opts = opts.withDefaults()

	var out []Summary
	for _, s := range signals {
		key := s.Name
		sketch := sliding.New(opts.TopK, opts.Window)

		seen := false
		var last time.Time
		for _, p := range points {
			t := p.Time().Truncate(opts.Tick)
			if !last.IsZero() {
				if ticks := int(t.Sub(last) / opts.Tick); ticks > 0 {
					sketch.Ticks(min(ticks, opts.Window))
				}
			}
			last = t

			if v, ok := p.Original(key); ok {
				sketch.Incr(v)
				seen = true
			}
		}
		if !seen {
			continue
		}

		var values []ValueCount
		for _, item := range sketch.SortedSlice() {
			if n := sketch.Count(item.Item); n > 0 {
				values = append(values, ValueCount{Value: item.Item, Count: n})
			}
		}
		sort.SliceStable(values, func(i, j int) bool {
			if values[i].Count != values[j].Count {
				return values[i].Count > values[j].Count
			}
			return values[i].Value < values[j].Value
		})
		if len(values) > opts.TopK {
			values = values[:opts.TopK]
		}
		out = append(out, Summary{Signal: s.Name, Values: values})
	}
	return out
}
