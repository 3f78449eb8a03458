package fixture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Store loads fixtures from a directory and keeps each one after the first
// read, so every scenario in a run sees the same payload.
type Store struct {
	dir   string
	mu    sync.Mutex
	cache map[string]*Fixture
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		cache: make(map[string]*Fixture),
	}
}

// Dir returns the fixture directory.
func (s *Store) Dir() string {
	return s.dir
}

// Put registers an in-memory fixture under its name, replacing any cached one.
func (s *Store) Put(f *Fixture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[normalizeName(f.Name())] = f
}

// Load returns the named fixture, reading it from disk on first use.
// The ".json" extension is optional.
func (s *Store) Load(name string) (*Fixture, error) {
	key := normalizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.cache[key]; ok {
		return f, nil
	}

	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture %s: %w", key, err)
	}

	f, err := Parse(key, data)
	if err != nil {
		return nil, err
	}
	s.cache[key] = f
	return f, nil
}

// Validate checks the named fixture's body against a JSON schema file.
func (s *Store) Validate(name, schemaPath string) error {
	f, err := s.Load(name)
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(schemaPath)
	if err != nil {
		return fmt.Errorf("resolving schema path: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewReferenceLoader("file://"+filepath.ToSlash(abs)),
		gojsonschema.NewBytesLoader(f.body),
	)
	if err != nil {
		return fmt.Errorf("validating fixture %s: %w", f.Name(), err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("fixture %s does not match %s: %s", f.Name(), schemaPath, strings.Join(msgs, "; "))
}

func (s *Store) resolve(name string) (string, error) {
	path := filepath.Join(s.dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("fixture %q escapes fixture directory", name)
	}
	return path, nil
}

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if filepath.Ext(name) == "" {
		name += ".json"
	}
	return filepath.ToSlash(filepath.Clean(name))
}
