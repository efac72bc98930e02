package narrative

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store resolves graphs by id, e.g. "NarrativeGraphs/Chapter_3".
type Store interface {
	Resolve(id string) (*Graph, error)
}

// DirStore resolves graph ids to files under a root directory.
// An id maps to <root>/<id>.yaml, .yml or .json, in that order.
// Parsed graphs are cached for the store's lifetime.
type DirStore struct {
	root string

	mu    sync.RWMutex
	cache map[string]*Graph
}

var graphExtensions = []string{".yaml", ".yml", ".json"}

// NewDirStore creates a store rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{
		root:  dir,
		cache: make(map[string]*Graph),
	}
}

// Resolve returns the graph with the given id.
// Missing files return an error wrapping ErrNotFound.
func (s *DirStore) Resolve(id string) (*Graph, error) {
	s.mu.RLock()
	g, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return g, nil
	}

	path, format, err := s.locate(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph %s: %w", id, err)
	}

	g, err = ParseGraph(data, format, id)
	if err != nil {
		return nil, err
	}
	// The file name is authoritative so callers can resolve the id again.
	g.ID = id

	s.mu.Lock()
	s.cache[id] = g
	s.mu.Unlock()

	return g, nil
}

func (s *DirStore) locate(id string) (string, Format, error) {
	if id == "" || !filepath.IsLocal(filepath.FromSlash(id)) {
		return "", "", fmt.Errorf("%w: invalid id %q", ErrNotFound, id)
	}
	base := filepath.Join(s.root, filepath.FromSlash(id))
	for _, ext := range graphExtensions {
		candidate := base + ext
		if _, err := os.Stat(candidate); err == nil {
			format, _ := FormatFromPath(candidate)
			return candidate, format, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", "", fmt.Errorf("failed to stat graph %s: %w", id, err)
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrNotFound, id)
}

// MemoryStore is a Store backed by a map, for tests and embedded content.
type MemoryStore struct {
	mu     sync.RWMutex
	graphs map[string]*Graph
}

// NewMemoryStore creates a store holding the given graphs keyed by their ids.
func NewMemoryStore(graphs ...*Graph) *MemoryStore {
	s := &MemoryStore{graphs: make(map[string]*Graph)}
	for _, g := range graphs {
		s.graphs[g.ID] = g
	}
	return s
}

// Put adds or replaces a graph.
func (s *MemoryStore) Put(g *Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs[g.ID] = g
}

// Resolve returns the graph with the given id.
func (s *MemoryStore) Resolve(id string) (*Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if g, ok := s.graphs[id]; ok {
		return g, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}
