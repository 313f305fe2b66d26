package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"

	"github.com/forblgac/nijisanji-vtuber-recommend/internal/profile"
)

// RecordStorage defines the interface for caching raw catalog records
type RecordStorage interface {
	Save(rec profile.Record) error
	Get(name string) (*profile.Record, error)
	List() ([]profile.Record, error)
	Close() error
}

// FileStorage implements RecordStorage using the local file system
type FileStorage struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStorage creates a new file-based storage
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStorage{
		baseDir: baseDir,
	}, nil
}

// Save writes the record to a JSON file keyed by its name
func (fs *FileStorage) Save(rec profile.Record) error {
	if strings.TrimSpace(rec.Name) == "" {
		return fmt.Errorf("cannot cache record: %w", profile.ErrMalformedProfile)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	path := filepath.Join(fs.baseDir, safeFilename(rec.Name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// Get retrieves a cached record from disk
func (fs *FileStorage) Get(name string) (*profile.Record, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return fs.read(filepath.Join(fs.baseDir, safeFilename(name)))
}

// List returns every cached record ordered by name
func (fs *FileStorage) List() ([]profile.Record, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	var records []profile.Record
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		rec, err := fs.read(filepath.Join(fs.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		records = append(records, *rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
	return records, nil
}

// Close is a no-op for file storage
func (fs *FileStorage) Close() error {
	return nil
}

func (fs *FileStorage) read(path string) (*profile.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var rec profile.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return &rec, nil
}

// safeFilename maps a creator name to a stable file name. Names are mostly
// non-ASCII, so they are hashed rather than sanitized.
func safeFilename(name string) string {
	return fmt.Sprintf("%016x.json", xxhash.Sum64String(strings.TrimSpace(name)))
}
