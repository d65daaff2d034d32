// Package personality stores chat personalities as JSON documents, one
// file per id, in a directory.
package personality

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
)

var (
	ErrNotFound  = errors.New("personality not found")
	ErrInvalidID = errors.New("invalid personality id")
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9_.-]{0,127}$`)

// Personality is an arbitrary JSON document. Only id and system_prompt
// have meaning to the service.
type Personality map[string]any

func (p Personality) ID() string {
	s, _ := p["id"].(string)
	return s
}

func (p Personality) SystemPrompt() string {
	s, _ := p["system_prompt"].(string)
	return s
}

type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore uses dir, creating it when missing.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create personalities dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(id string) (string, error) {
	if !validID.MatchString(id) || strings.Contains(id, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// List returns the ids of every stored personality, sorted.
func (s *Store) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list personalities: %w", err)
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, strings.TrimSuffix(filepath.Base(m), ".json"))
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) Load(id string) (Personality, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, err := os.ReadFile(path)
	s.mu.RUnlock()
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read personality %s: %w", id, err)
	}

	var p Personality
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode personality %s: %w", id, err)
	}
	return p, nil
}

// Save writes p under id, replacing any existing document.
func (s *Store) Save(id string, p Personality) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode personality %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("save personality %s: %w", id, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save personality %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save personality %s: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save personality %s: %w", id, err)
	}
	return nil
}
