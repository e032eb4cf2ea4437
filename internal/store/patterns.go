package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/pattern"
	"github.com/rs/zerolog/log"
)

// Pattern tiers. The shared tier is the copy other users publish to; the
// local tier is this installation's working copy.
const (
	tierLocal  = "local"
	tierShared = "shared"
)

// PatternStore implements pattern.Store on a DuckDB file.
type PatternStore struct {
	db *sql.DB
}

var _ pattern.Store = (*PatternStore)(nil)

// OpenPatternStore opens or creates the pattern database at path.
func OpenPatternStore(path string) (*PatternStore, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS patterns (
			tier        VARCHAR NOT NULL,
			position    INTEGER NOT NULL,
			id          VARCHAR NOT NULL,
			name        VARCHAR NOT NULL,
			pattern     VARCHAR NOT NULL,
			description VARCHAR
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create patterns table: %w", err)
	}
	return &PatternStore{db: db}, nil
}

// Close closes the database.
func (s *PatternStore) Close() error {
	return s.db.Close()
}

// Save replaces the local set and the shared set with patterns, so a later
// Load returns what was saved.
func (s *PatternStore) Save(ctx context.Context, patterns []models.Pattern) error {
	return s.replace(ctx, pattern.EnsureIDs(patterns), tierLocal, tierShared)
}

// Publish replaces the shared pattern set only. Local copies pick it up on
// their next Load.
func (s *PatternStore) Publish(ctx context.Context, patterns []models.Pattern) error {
	return s.replace(ctx, pattern.EnsureIDs(patterns), tierShared)
}

// Load returns the shared set when one has been published, copying it over
// the local set. Otherwise it returns the local set, or the defaults when
// nothing was ever saved.
func (s *PatternStore) Load(ctx context.Context) ([]models.Pattern, error) {
	shared, err := s.tier(ctx, tierShared)
	if err != nil {
		return nil, err
	}
	if len(shared) > 0 {
		if err := s.replace(ctx, shared, tierLocal); err != nil {
			return nil, fmt.Errorf("syncing shared patterns: %w", err)
		}
		return shared, nil
	}

	local, err := s.tier(ctx, tierLocal)
	if err != nil {
		return nil, err
	}
	if len(local) == 0 {
		return pattern.Defaults(), nil
	}
	return local, nil
}

// HasRemoteChanges reports whether the shared set differs from the local
// one by pattern ID.
func (s *PatternStore) HasRemoteChanges(ctx context.Context) (bool, error) {
	shared, err := s.ids(ctx, tierShared)
	if err != nil {
		return false, err
	}
	if len(shared) == 0 {
		return false, nil
	}
	local, err := s.ids(ctx, tierLocal)
	if err != nil {
		return false, err
	}
	return !slices.Equal(shared, local), nil
}

// replace overwrites each tier with patterns in one transaction.
func (s *PatternStore) replace(ctx context.Context, patterns []models.Pattern, tiers ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, tier := range tiers {
		if _, err := tx.ExecContext(ctx, "DELETE FROM patterns WHERE tier = ?", tier); err != nil {
			return fmt.Errorf("clearing %s patterns: %w", tier, err)
		}
		for i, p := range patterns {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO patterns (tier, position, id, name, pattern, description) VALUES (?, ?, ?, ?, ?, ?)",
				tier, i, p.ID, p.Name, p.Pattern, p.Description)
			if err != nil {
				return fmt.Errorf("inserting pattern %q: %w", p.Name, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.Debug().Strs("tiers", tiers).Int("patterns", len(patterns)).Msg("patterns saved")
	return nil
}

func (s *PatternStore) tier(ctx context.Context, tier string) ([]models.Pattern, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, pattern, COALESCE(description, '') FROM patterns WHERE tier = ? ORDER BY position", tier)
	if err != nil {
		return nil, fmt.Errorf("loading %s patterns: %w", tier, err)
	}
	defer rows.Close()

	var out []models.Pattern
	for rows.Next() {
		var p models.Pattern
		if err := rows.Scan(&p.ID, &p.Name, &p.Pattern, &p.Description); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PatternStore) ids(ctx context.Context, tier string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM patterns WHERE tier = ? ORDER BY id", tier)
	if err != nil {
		return nil, fmt.Errorf("loading %s pattern ids: %w", tier, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
