package extract

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
)

// ErrTableFrozen is returned when a value is observed after Freeze.
var ErrTableFrozen = errors.New("intern table is frozen")

// InternTable maps the categorical values of each signal to stable integer
// indices. Values are collected with Observe during the first pass, then
// Freeze sorts each signal's distinct values lexicographically and numbers
// them from 0. After Freeze the table is read-only.
type InternTable struct {
	mu     sync.RWMutex
	frozen bool
	seen   map[string]map[string]struct{}
	index  map[string]map[string]int
	values map[string][]string
}

// NewInternTable creates an empty, unfrozen table.
func NewInternTable() *InternTable {
	return &InternTable{
		seen: make(map[string]map[string]struct{}),
	}
}

// Observe records a categorical value for a signal.
func (t *InternTable) Observe(signal, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return ErrTableFrozen
	}
	set, ok := t.seen[signal]
	if !ok {
		set = make(map[string]struct{})
		t.seen[signal] = set
	}
	set[value] = struct{}{}
	return nil
}

// Freeze assigns indices. Calling it again has no effect.
func (t *InternTable) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return
	}
	t.index = make(map[string]map[string]int, len(t.seen))
	t.values = make(map[string][]string, len(t.seen))
	for signal, set := range t.seen {
		vals := make([]string, 0, len(set))
		for v := range set {
			vals = append(vals, v)
		}
		sort.Strings(vals)

		idx := make(map[string]int, len(vals))
		for i, v := range vals {
			idx[v] = i
		}
		t.index[signal] = idx
		t.values[signal] = vals
	}
	t.seen = nil
	t.frozen = true
}

// Frozen reports whether indices have been assigned.
func (t *InternTable) Frozen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frozen
}

// Index returns the index of value for signal. It reports false for values
// never observed and for any lookup before Freeze.
func (t *InternTable) Index(signal, value string) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.frozen {
		return 0, false
	}
	i, ok := t.index[signal][value]
	return i, ok
}

// Value returns the original string at index for signal.
func (t *InternTable) Value(signal string, index int) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	vals := t.values[signal]
	if index < 0 || index >= len(vals) {
		return "", false
	}
	return vals[index], true
}

// Values returns the sorted distinct values of a signal.
func (t *InternTable) Values(signal string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.values[signal]...)
}

// Signals returns the names of signals with at least one categorical value, sorted.
func (t *InternTable) Signals() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var names []string
	if t.frozen {
		for s := range t.index {
			names = append(names, s)
		}
	} else {
		for s := range t.seen {
			names = append(names, s)
		}
	}
	sort.Strings(names)
	return names
}

// Len returns the number of signals with categorical values.
func (t *InternTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.frozen {
		return len(t.index)
	}
	return len(t.seen)
}

// Map returns a copy of the signal -> value -> index mapping.
func (t *InternTable) Map() map[string]map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]map[string]int, len(t.index))
	for s, idx := range t.index {
		m := make(map[string]int, len(idx))
		for v, i := range idx {
			m[v] = i
		}
		out[s] = m
	}
	return out
}

// MarshalJSON encodes the frozen mapping.
func (t *InternTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Map())
}
