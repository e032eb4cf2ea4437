// Package storage keeps uploaded log files on an afero filesystem.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/logvision/backend/internal/models"
	"github.com/spf13/afero"
)

// ErrNotFound is returned for unknown file IDs.
var ErrNotFound = errors.New("file not found")

// ErrInvalidUploadID is returned for upload IDs that are not a single
// plain path element.
var ErrInvalidUploadID = errors.New("invalid upload id")

// ValidUploadID reports whether id can name a chunk directory.
func ValidUploadID(id string) bool {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\:`) {
		return false
	}
	return filepath.IsLocal(id) && filepath.Base(id) == id
}

// Store defines the interface for log file storage.
type Store interface {
	Save(name string, r io.Reader) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	List(limit int) ([]*models.FileInfo, error)
	Delete(id string) error
	Rename(id string, newName string) (*models.FileInfo, error)
	SetStatus(id, status string) error
	ReadText(id string) (string, error)
	SaveChunk(uploadID string, chunkIndex int, r io.Reader) error
	CompleteChunkedUpload(uploadID string, name string, totalChunks int) (*models.FileInfo, error)
}

// LocalStore implements Store on an afero filesystem rooted at uploadDir.
type LocalStore struct {
	fs        afero.Fs
	mu        sync.RWMutex
	uploadDir string
	files     map[string]*models.FileInfo
}

// NewLocalStore creates a store on the OS filesystem.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	return NewStore(afero.NewOsFs(), uploadDir)
}

// NewStore creates a store on fs.
func NewStore(fs afero.Fs, uploadDir string) (*LocalStore, error) {
	if err := fs.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	return &LocalStore{
		fs:        fs,
		uploadDir: uploadDir,
		files:     make(map[string]*models.FileInfo),
	}, nil
}

// Save writes r to a new file.
func (s *LocalStore) Save(name string, r io.Reader) (*models.FileInfo, error) {
	id := uuid.New().String()
	path := filepath.Join(s.uploadDir, id)

	f, err := s.fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		s.fs.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	return s.register(id, name, size), nil
}

func (s *LocalStore) register(id, name string, size int64) *models.FileInfo {
	info := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       size,
		UploadedAt: time.Now(),
		Status:     models.FileUploaded,
	}

	s.mu.Lock()
	s.files[id] = info
	s.mu.Unlock()
	return info
}

// Get returns a copy of a file's metadata.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c := *info
	return &c, nil
}

// List returns the most recent files first, at most limit of them.
func (s *LocalStore) List(limit int) ([]*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		c := *info
		list = append(list, &c)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// Delete removes a file and its metadata.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	path := filepath.Join(s.uploadDir, id)
	if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return nil
}

// Rename updates the display name of a file.
func (s *LocalStore) Rename(id string, newName string) (*models.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	info.Name = newName
	c := *info
	return &c, nil
}

// SetStatus records the analysis status of a file.
func (s *LocalStore) SetStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	info.Status = status
	return nil
}

// ReadText returns the whole content of a file.
func (s *LocalStore) ReadText(id string) (string, error) {
	s.mu.RLock()
	_, ok := s.files[id]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	data, err := afero.ReadFile(s.fs, filepath.Join(s.uploadDir, id))
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return string(data), nil
}

// SaveChunk saves a single chunk of a multi-part upload.
func (s *LocalStore) SaveChunk(uploadID string, chunkIndex int, r io.Reader) error {
	if !ValidUploadID(uploadID) {
		return fmt.Errorf("%w: %q", ErrInvalidUploadID, uploadID)
	}
	chunkDir := filepath.Join(s.uploadDir, "chunks", uploadID)
	if err := s.fs.MkdirAll(chunkDir, 0755); err != nil {
		return fmt.Errorf("creating chunk directory: %w", err)
	}

	f, err := s.fs.Create(filepath.Join(chunkDir, fmt.Sprintf("chunk_%d", chunkIndex)))
	if err != nil {
		return fmt.Errorf("creating chunk file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("writing chunk: %w", err)
	}
	return nil
}

// CompleteChunkedUpload assembles chunks 0..totalChunks-1 into one file.
func (s *LocalStore) CompleteChunkedUpload(uploadID string, name string, totalChunks int) (*models.FileInfo, error) {
	if !ValidUploadID(uploadID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUploadID, uploadID)
	}
	id := uuid.New().String()
	finalPath := filepath.Join(s.uploadDir, id)
	chunkDir := filepath.Join(s.uploadDir, "chunks", uploadID)

	out, err := s.fs.Create(finalPath)
	if err != nil {
		return nil, fmt.Errorf("creating final file: %w", err)
	}
	defer out.Close()

	var totalSize int64
	for i := 0; i < totalChunks; i++ {
		in, err := s.fs.Open(filepath.Join(chunkDir, fmt.Sprintf("chunk_%d", i)))
		if err != nil {
			s.fs.Remove(finalPath)
			return nil, fmt.Errorf("opening chunk %d: %w", i, err)
		}

		n, err := io.Copy(out, in)
		in.Close()
		if err != nil {
			s.fs.Remove(finalPath)
			return nil, fmt.Errorf("copying chunk %d: %w", i, err)
		}
		totalSize += n
	}

	s.fs.RemoveAll(chunkDir)
	return s.register(id, name, totalSize), nil
}
