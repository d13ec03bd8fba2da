package kvstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// FileStore persists each key as one JSON document in a data directory.
// It is the default backend and the closest server-side analog to the
// browser's synchronous key-value storage.
type FileStore struct {
	mu        sync.Mutex
	dir       string
	logger    *zap.Logger
	available bool
}

// NewFileStore creates a FileStore rooted at dir, creating the directory if
// needed. If dir cannot be created or written, the store still constructs but
// degrades to a logged no-op, matching the storage contract.
func NewFileStore(dir string, logger *zap.Logger) *FileStore {
	s := &FileStore{dir: dir, logger: logger, available: true}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.available = false
		logger.Warn("storage unavailable, operating without persistence", zap.String("dir", dir), zap.Error(err))
		return s
	}
	probe := filepath.Join(dir, ".probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		s.available = false
		logger.Warn("storage not writable, operating without persistence", zap.String("dir", dir), zap.Error(err))
		return s
	}
	_ = os.Remove(probe)
	return s
}

// Set implements Store.
func (s *FileStore) Set(key string, value any) {
	if !s.available {
		s.logger.Warn("storage unavailable, set dropped", zap.String("key", key))
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("storage set: serialize failed", zap.String("key", key), zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.path(key), data, 0o644); err != nil {
		s.logger.Warn("storage set failed", zap.String("key", key), zap.Error(err))
	}
}

// Get implements Store.
func (s *FileStore) Get(key string, out any) bool {
	if !s.available {
		return false
	}
	s.mu.Lock()
	data, err := os.ReadFile(s.path(key))
	s.mu.Unlock()
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("storage get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		// Corrupt entries read as absent per the storage contract.
		s.logger.Warn("storage get: malformed entry", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Has implements Store.
func (s *FileStore) Has(key string) bool {
	if !s.available {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := os.Stat(s.path(key))
	return err == nil
}

// Remove implements Store.
func (s *FileStore) Remove(key string) {
	if !s.available {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("storage remove failed", zap.String("key", key), zap.Error(err))
	}
}

// Clear implements Store. Only entries written by this store (*.json) are
// removed; the directory itself is kept.
func (s *FileStore) Clear() {
	if !s.available {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		s.logger.Warn("storage clear failed", zap.Error(err))
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			s.logger.Warn("storage clear: remove failed", zap.String("file", m), zap.Error(err))
		}
	}
}

// Available implements Store.
func (s *FileStore) Available() bool {
	return s.available
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, sanitizeKey(key)+".json")
}

// sanitizeKey maps a storage key to a safe filename. Keys are
// caller-controlled identifiers (local_weatherData, api_request_count, ...),
// so this only has to neutralize separators.
func sanitizeKey(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_", ":", "_")
	return r.Replace(key)
}
