package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/logvision/backend/internal/models"
	"github.com/marcboeker/go-duckdb"
	"github.com/rs/zerolog/log"
)

// SeriesStore keeps one session's formatted series in a temporary DuckDB
// file so range queries do not need the in-memory copy.
type SeriesStore struct {
	db     *sql.DB
	dbPath string

	count int
	minTs int64
	maxTs int64

	// Limits concurrent range queries.
	querySem chan struct{}
}

// NewSeriesStore creates a series database for sessionID in dir. An empty
// dir keeps the database in memory.
func NewSeriesStore(dir, sessionID string) (*SeriesStore, error) {
	dbPath := ""
	if dir != "" {
		dbPath = filepath.Join(dir, fmt.Sprintf("series_%s.duckdb", sessionID))
	}

	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	// One row per (point, signal). seq keeps the point order.
	_, err = db.Exec(`
		CREATE TABLE points (
			seq       INTEGER NOT NULL,
			timestamp BIGINT NOT NULL,
			signal    VARCHAR NOT NULL,
			value     DOUBLE NOT NULL,
			original  VARCHAR NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		if dbPath != "" {
			os.Remove(dbPath)
		}
		return nil, fmt.Errorf("failed to create points table: %w", err)
	}

	return &SeriesStore{db: db, dbPath: dbPath, querySem: make(chan struct{}, 3)}, nil
}

// Write appends points and indexes them by timestamp.
func (s *SeriesStore) Write(ctx context.Context, points []models.FlatPoint) error {
	if len(points) == 0 {
		return nil
	}
	start := time.Now()
	base := s.count

	err := withAppender(ctx, s.db, "points", func(app *duckdb.Appender) error {
		for i, p := range points {
			seq := int32(base + i)
			if len(p.Values) == 0 {
				if err := app.AppendRow(seq, p.Timestamp, "", 0.0, ""); err != nil {
					return fmt.Errorf("failed to append point %d: %w", i, err)
				}
				continue
			}
			for name, v := range p.Values {
				orig := p.Originals[name]
				if err := app.AppendRow(seq, p.Timestamp, name, v, orig); err != nil {
					return fmt.Errorf("failed to append point %d: %w", i, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}

	for _, p := range points {
		if s.count == 0 || p.Timestamp < s.minTs {
			s.minTs = p.Timestamp
		}
		if s.count == 0 || p.Timestamp > s.maxTs {
			s.maxTs = p.Timestamp
		}
		s.count++
	}

	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_ts ON points(timestamp)"); err != nil {
		log.Warn().Err(err).Msg("creating timestamp index failed")
	}

	log.Debug().Int("points", len(points)).Dur("elapsed", time.Since(start)).Msg("series written")
	return nil
}

// Len returns the number of stored points.
func (s *SeriesStore) Len() int {
	return s.count
}

// TimeRange returns the extent of the stored points, or nil when empty.
func (s *SeriesStore) TimeRange() *models.TimeRange {
	if s.count == 0 {
		return nil
	}
	return &models.TimeRange{
		Start: time.UnixMilli(s.minTs).UTC(),
		End:   time.UnixMilli(s.maxTs).UTC(),
	}
}

// QueryRange returns the points with start <= timestamp <= end in their
// original order.
func (s *SeriesStore) QueryRange(ctx context.Context, start, end time.Time) ([]models.FlatPoint, error) {
	select {
	case s.querySem <- struct{}{}:
		defer func() { <-s.querySem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, timestamp, signal, value, original
		FROM points
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY seq
	`, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("range query failed: %w", err)
	}
	defer rows.Close()

	bySeq := make(map[int32]*models.FlatPoint)
	var order []int32
	for rows.Next() {
		var (
			seq       int32
			ts        int64
			name, raw string
			value     float64
		)
		if err := rows.Scan(&seq, &ts, &name, &value, &raw); err != nil {
			return nil, err
		}
		p, ok := bySeq[seq]
		if !ok {
			p = &models.FlatPoint{Timestamp: ts, Values: map[string]float64{}}
			bySeq[seq] = p
			order = append(order, seq)
		}
		if name == "" {
			continue
		}
		p.Values[name] = value
		if raw != "" {
			if p.Originals == nil {
				p.Originals = map[string]string{}
			}
			p.Originals[name] = raw
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([]models.FlatPoint, len(order))
	for i, seq := range order {
		out[i] = *bySeq[seq]
	}
	return out, nil
}

// Close closes the database and removes its file.
func (s *SeriesStore) Close() error {
	err := s.db.Close()
	if s.dbPath != "" {
		if rmErr := os.Remove(s.dbPath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn().Err(rmErr).Str("path", s.dbPath).Msg("removing series file failed")
		}
	}
	return err
}
