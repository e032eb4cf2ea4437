// Package upload assembles chunked uploads in background jobs whose status
// can be polled.
package upload

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/storage"
	"github.com/rs/zerolog/log"
)

// Status represents the upload processing status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAssembling Status = "assembling"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Finished reports whether the job has stopped.
func (s Status) Finished() bool {
	return s == StatusComplete || s == StatusError
}

// Job represents an async upload assembly job.
type Job struct {
	ID          string           `json:"id"`
	UploadID    string           `json:"uploadId"`
	FileName    string           `json:"fileName"`
	TotalChunks int              `json:"totalChunks"`
	Status      Status           `json:"status"`
	Progress    float64          `json:"progress"` // 0-100
	FileInfo    *models.FileInfo `json:"fileInfo,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

func (j *Job) clone() *Job {
	c := *j
	if j.FileInfo != nil {
		info := *j.FileInfo
		c.FileInfo = &info
	}
	return &c
}

// Manager runs upload jobs against a file store.
type Manager struct {
	jobs  map[string]*Job
	mu    sync.RWMutex
	store storage.Store
}

// NewManager creates a new upload processing manager.
func NewManager(store storage.Store) *Manager {
	return &Manager{
		jobs:  make(map[string]*Job),
		store: store,
	}
}

// StartJob begins assembling an upload and returns a snapshot of the job.
func (m *Manager) StartJob(uploadID, fileName string, totalChunks int) *Job {
	job := &Job{
		ID:          uuid.New().String(),
		UploadID:    uploadID,
		FileName:    fileName,
		TotalChunks: totalChunks,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	snapshot := job.clone()
	m.mu.Unlock()

	go m.processJob(job)
	return snapshot
}

// GetJob returns a copy of a job.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	return job.clone(), true
}

func (m *Manager) processJob(job *Job) {
	defer func() {
		if r := recover(); r != nil {
			m.markJobError(job, fmt.Errorf("panic: %v", r))
		}
	}()

	m.setStatus(job, StatusAssembling)
	start := time.Now()

	info, err := m.store.CompleteChunkedUpload(job.UploadID, job.FileName, job.TotalChunks)
	if err != nil {
		m.markJobError(job, fmt.Errorf("assembling chunks: %w", err))
		return
	}

	m.markJobComplete(job, info)
	log.Info().
		Str("job", job.ID[:8]).
		Str("file", info.ID).
		Int("chunks", job.TotalChunks).
		Int64("size", info.Size).
		Dur("elapsed", time.Since(start)).
		Msg("upload assembled")
}

func (m *Manager) setStatus(job *Job, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.Status = status
}

func (m *Manager) markJobComplete(job *Job, info *models.FileInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusComplete
	job.Progress = 100
	job.FileInfo = info
	now := time.Now()
	job.CompletedAt = &now
}

func (m *Manager) markJobError(job *Job, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusError
	job.Error = err.Error()
	now := time.Now()
	job.CompletedAt = &now
	log.Error().Err(err).Str("job", job.ID[:8]).Str("upload", job.UploadID).Msg("upload failed")
}

// CleanupOldJobs removes finished jobs completed more than maxAge ago.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for id, job := range m.jobs {
		if job.Status.Finished() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
		}
	}
}
