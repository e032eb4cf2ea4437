package pattern

import (
	"context"

	"github.com/logvision/backend/internal/models"
	"github.com/rs/zerolog/log"
)

// Store persists the active pattern set. Implementations keep a local copy
// and a shared copy that other users may update.
type Store interface {
	Save(ctx context.Context, patterns []models.Pattern) error
	Load(ctx context.Context) ([]models.Pattern, error)
	HasRemoteChanges(ctx context.Context) (bool, error)
}

// LoadOrDefault loads the stored set and falls back to Defaults when the
// store cannot be read.
func LoadOrDefault(ctx context.Context, s Store) []models.Pattern {
	patterns, err := s.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("loading patterns failed, using defaults")
		return Defaults()
	}
	return patterns
}
