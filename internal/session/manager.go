// Package session runs analyses in the background and keeps their view
// state until they age out.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/logvision/backend/internal/extract"
	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/pipeline"
	"github.com/logvision/backend/internal/segment"
	"github.com/logvision/backend/internal/store"
	"github.com/logvision/backend/internal/view"
	"github.com/rs/zerolog/log"
)

// MaxSessions limits concurrent sessions to prevent memory exhaustion
const MaxSessions = 10

// SessionMaxAge is how long to keep finished sessions before cleanup
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

var (
	ErrNotFound = errors.New("session not found")
	ErrNotReady = errors.New("session has no series yet")
)

// Options configures a Manager.
type Options struct {
	Pipeline pipeline.Options
	View     view.Config
	// SeriesDir holds per-session DuckDB series files when PersistSeries
	// is set. An empty dir keeps them in memory.
	SeriesDir     string
	PersistSeries bool
	MaxSessions   int
}

// Manager handles active analysis sessions.
type Manager struct {
	sessions map[string]*SessionState
	mu       sync.RWMutex
	runner   pipeline.Runner
	opts     Options
}

// SessionState holds a session's metadata, its view and its results.
type SessionState struct {
	Session      *models.AnalysisSession
	View         *view.Controller
	Interns      *extract.InternTable
	Series       *store.SeriesStore // nil unless series persistence is on
	LastAccessed time.Time
	cancel       context.CancelFunc
}

// NewManager creates a manager running the default pipeline.
func NewManager(opts Options) *Manager {
	return NewManagerWithRunner(pipeline.New(opts.Pipeline), opts)
}

// NewManagerWithRunner creates a manager on a specific runner.
func NewManagerWithRunner(runner pipeline.Runner, opts Options) *Manager {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = MaxSessions
	}
	if opts.View.MaxDisplayPoints == 0 {
		opts.View = view.DefaultConfig()
	}
	return &Manager{
		sessions: make(map[string]*SessionState),
		runner:   runner,
		opts:     opts,
	}
}

// shortID truncates an ID for logging.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// StartSession begins analysing text with patterns. fileID may be empty
// for pasted text.
func (m *Manager) StartSession(fileID, text string, patterns []models.Pattern) (*models.AnalysisSession, error) {
	m.cleanupOldSessionsIfNeeded()

	sessionID := uuid.New().String()
	session := models.NewAnalysisSession(sessionID, fileID)
	session.Status = models.SessionStatusProcessing

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{runner: m.runner}
	state := &SessionState{
		Session:      session,
		View:         view.NewController(rec, m.opts.View),
		LastAccessed: time.Now(),
		cancel:       cancel,
	}
	rec.onProgress = func(p models.Progress) { m.updateProgress(sessionID, p) }

	m.mu.Lock()
	m.sessions[sessionID] = state
	m.mu.Unlock()

	go m.runAnalysis(ctx, sessionID, state.View, rec, text, patterns)

	return session.Clone(), nil
}

// recorder keeps the last pipeline result and mirrors progress to the
// session.
type recorder struct {
	runner     pipeline.Runner
	onProgress func(models.Progress)
	result     *pipeline.Result
}

func (r *recorder) Run(ctx context.Context, text string, patterns []models.Pattern, onProgress func(models.Progress)) (*pipeline.Result, error) {
	res, err := r.runner.Run(ctx, text, patterns, func(p models.Progress) {
		if onProgress != nil {
			onProgress(p)
		}
		if r.onProgress != nil {
			r.onProgress(p)
		}
	})
	r.result = res
	return res, err
}

func (m *Manager) runAnalysis(ctx context.Context, sessionID string, ctl *view.Controller, rec *recorder, text string, patterns []models.Pattern) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("session", shortID(sessionID)).Interface("panic", r).Msg("analysis panicked")
			m.updateSessionError(sessionID, fmt.Sprintf("analysis panicked: %v", r))
		}
	}()

	start := time.Now()
	log.Info().Str("session", shortID(sessionID)).Int("bytes", len(text)).Int("patterns", len(patterns)).Msg("analysis started")

	if err := ctl.Load(ctx, text, patterns); err != nil {
		log.Warn().Err(err).Str("session", shortID(sessionID)).Msg("analysis failed")
		m.updateSessionError(sessionID, err.Error())
		return
	}
	res := rec.result

	var series *store.SeriesStore
	if m.opts.PersistSeries && !res.Empty() {
		s, err := store.NewSeriesStore(m.opts.SeriesDir, sessionID)
		if err == nil {
			err = s.Write(ctx, res.Points)
			if err != nil {
				s.Close()
			}
		}
		if err != nil {
			log.Warn().Err(err).Str("session", shortID(sessionID)).Msg("persisting series failed, serving from memory")
		} else {
			series = s
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		if series != nil {
			series.Close()
		}
		return
	}

	state.Interns = res.Interns
	state.Series = series

	sess := state.Session
	sess.Progress = 100
	sess.RecordCount = res.RecordCount
	sess.PointCount = len(res.Points)
	sess.SignalCount = len(res.Signals)
	sess.ProcessingTimeMs = time.Since(start).Milliseconds()
	sess.Warnings = res.Messages()
	if res.TimeRange != nil {
		sess.StartTime = res.TimeRange.Start.UnixMilli()
		sess.EndTime = res.TimeRange.End.UnixMilli()
	}
	if res.Empty() {
		sess.Status = models.SessionStatusEmpty
		sess.StatusText = "No matching data"
	} else {
		sess.Status = models.SessionStatusComplete
		sess.StatusText = "Complete"
	}

	log.Info().
		Str("session", shortID(sessionID)).
		Int("records", res.RecordCount).
		Int("points", len(res.Points)).
		Int64("elapsed_ms", sess.ProcessingTimeMs).
		Msg("analysis finished")
}

func (m *Manager) updateProgress(sessionID string, p models.Progress) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok || state.Session.Status.Finished() {
		return
	}
	state.Session.Progress = p.Percent
	state.Session.StatusText = p.Status
}

func (m *Manager) updateSessionError(sessionID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}

	state.Session.Status = models.SessionStatusError
	state.Session.StatusText = "Error"
	state.Session.Errors = append(state.Session.Errors, reason)
}

// closeLocked cancels and releases a session. Callers hold mu.
func (m *Manager) closeLocked(id string) {
	state, ok := m.sessions[id]
	if !ok {
		return
	}
	state.cancel()
	if state.Series != nil {
		if err := state.Series.Close(); err != nil {
			log.Warn().Err(err).Str("session", shortID(id)).Msg("closing series store failed")
		}
	}
	delete(m.sessions, id)
}

// cleanupOldSessionsIfNeeded removes the least recently used finished
// sessions if at capacity.
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < m.opts.MaxSessions {
		return
	}

	var finished []string
	for id, state := range m.sessions {
		if state.Session.Status.Finished() {
			finished = append(finished, id)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return m.sessions[finished[i]].LastAccessed.Before(m.sessions[finished[j]].LastAccessed)
	})

	toFree := len(m.sessions) - m.opts.MaxSessions + 1
	for i := 0; i < toFree && i < len(finished); i++ {
		m.closeLocked(finished[i])
		log.Info().Str("session", shortID(finished[i])).Msg("cleaned up old session to free memory")
	}
}

// CleanupOldSessions removes finished sessions not accessed within maxAge,
// keeping any accessed within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	keepAliveCutoff := time.Now().Add(-SessionKeepAliveWindow)

	for id, state := range m.sessions {
		if !state.Session.Status.Finished() {
			continue
		}
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			idle := time.Since(state.LastAccessed).Round(time.Second)
			m.closeLocked(id)
			log.Info().Str("session", shortID(id)).Dur("idle", idle).Msg("cleaned up aged session")
		}
	}
}

// Close cancels every run and releases all sessions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range m.sessions {
		m.closeLocked(id)
	}
}

// DeleteSession cancels and removes a session.
func (m *Manager) DeleteSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return false
	}
	m.closeLocked(id)
	return true
}

// GetSession returns a copy of a session's metadata.
func (m *Manager) GetSession(id string) (*models.AnalysisSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return state.Session.Clone(), true
}

// ListSessions returns copies of all sessions.
func (m *Manager) ListSessions() []*models.AnalysisSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.AnalysisSession, 0, len(m.sessions))
	for _, state := range m.sessions {
		out = append(out, state.Session.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TouchSession updates the last accessed time to keep the session alive.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// View returns a session's view controller.
func (m *Manager) View(id string) (*view.Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return state.View, true
}

// Interns returns the string-to-index mapping of a finished session.
func (m *Manager) Interns(id string) (map[string]map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if state.Interns == nil {
		return nil, ErrNotReady
	}
	return state.Interns.Map(), nil
}

// QueryPoints returns the points with start <= timestamp <= end from the
// full series, using the persisted store when there is one.
func (m *Manager) QueryPoints(ctx context.Context, id string, start, end time.Time) ([]models.FlatPoint, error) {
	m.mu.RLock()
	state, ok := m.sessions[id]
	var (
		series *store.SeriesStore
		ctl    *view.Controller
	)
	if ok {
		series, ctl = state.Series, state.View
	}
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if series != nil {
		return series.QueryRange(ctx, start, end)
	}
	if !ctl.State().HasSeries() {
		return nil, ErrNotReady
	}
	return segment.ExtractRange(ctl.Series(), start, end), nil
}
