package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/peritus-ai/peritus/internal/common"
)

// modelExtensions are the file formats recognized as local models
var modelExtensions = map[string]string{
	".gguf": "gguf",
	".bin":  "ggml",
	".onnx": "onnx",
}

// ModelInfo describes one model file found in the local model directory
type ModelInfo struct {
	Name   string
	Path   string
	Format string
	Size   int64
}

// LocalModelStore scans the configured model directory for usable model
// files. Results are cached; Refresh rescans so models dropped into the
// directory at runtime become visible.
type LocalModelStore struct {
	dir    string
	mu     sync.RWMutex
	models []ModelInfo
	logger arbor.ILogger
}

// NewLocalModelStore creates a store over the configured model directory
func NewLocalModelStore(config *common.LocalModelConfig, logger arbor.ILogger) *LocalModelStore {
	store := &LocalModelStore{
		dir:    config.Dir,
		logger: logger,
	}
	store.Refresh()
	return store
}

// Refresh rescans the model directory
func (s *LocalModelStore) Refresh() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.mu.Lock()
		s.models = nil
		s.mu.Unlock()
		s.logger.Debug().Str("dir", s.dir).Msg("Local model directory not readable")
		return
	}

	var found []ModelInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		format, ok := modelExtensions[ext]
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, ModelInfo{
			Name:   entry.Name(),
			Path:   filepath.Join(s.dir, entry.Name()),
			Format: format,
			Size:   info.Size(),
		})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })

	s.mu.Lock()
	s.models = found
	s.mu.Unlock()

	s.logger.Debug().Int("count", len(found)).Str("dir", s.dir).Msg("Scanned local model directory")
}

// List returns all known model files
func (s *LocalModelStore) List() []ModelInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ModelInfo, len(s.models))
	copy(out, s.models)
	return out
}

// Find returns the model with the given file name, rescanning once on a
// miss before giving up.
func (s *LocalModelStore) Find(name string) (*ModelInfo, error) {
	if m := s.lookup(name); m != nil {
		return m, nil
	}
	s.Refresh()
	if m := s.lookup(name); m != nil {
		return m, nil
	}
	return nil, fmt.Errorf("model %s not found in %s", name, s.dir)
}

// First returns the first model in name order, or an error when the
// directory holds none.
func (s *LocalModelStore) First() (*ModelInfo, error) {
	s.mu.RLock()
	if len(s.models) > 0 {
		m := s.models[0]
		s.mu.RUnlock()
		return &m, nil
	}
	s.mu.RUnlock()

	s.Refresh()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.models) == 0 {
		return nil, fmt.Errorf("no model files in %s", s.dir)
	}
	m := s.models[0]
	return &m, nil
}

func (s *LocalModelStore) lookup(name string) *ModelInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.models {
		if m.Name == name {
			out := m
			return &out
		}
	}
	return nil
}
