package testutil

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/pattern"
)

// MemoryPatternStore implements pattern.Store in memory with the same
// local/shared semantics as the DuckDB store.
type MemoryPatternStore struct {
	mu      sync.Mutex
	local   []models.Pattern
	shared  []models.Pattern
	LoadErr error
}

var _ pattern.Store = (*MemoryPatternStore)(nil)

// NewMemoryPatternStore creates a store whose local set is patterns.
func NewMemoryPatternStore(patterns []models.Pattern) *MemoryPatternStore {
	return &MemoryPatternStore{local: slices.Clone(patterns)}
}

func (s *MemoryPatternStore) Save(_ context.Context, patterns []models.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local = pattern.EnsureIDs(patterns)
	s.shared = slices.Clone(s.local)
	return nil
}

// Publish replaces the shared set.
func (s *MemoryPatternStore) Publish(patterns []models.Pattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shared = pattern.EnsureIDs(patterns)
}

func (s *MemoryPatternStore) Load(context.Context) ([]models.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	if len(s.shared) > 0 {
		s.local = slices.Clone(s.shared)
	}
	if len(s.local) == 0 {
		return pattern.Defaults(), nil
	}
	return slices.Clone(s.local), nil
}

func (s *MemoryPatternStore) HasRemoteChanges(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.shared) == 0 {
		return false, nil
	}
	return !slices.Equal(sortedIDs(s.shared), sortedIDs(s.local)), nil
}

func sortedIDs(patterns []models.Pattern) []string {
	ids := make([]string, len(patterns))
	for i, p := range patterns {
		ids[i] = p.ID
	}
	sort.Strings(ids)
	return ids
}
