package memory

import (
	"sync"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driven"
)

// Ensure RegistryStore implements the interface.
var _ driven.RegistryStore = (*RegistryStore)(nil)

// RegistryStore is an in-memory implementation of driven.RegistryStore.
// Iteration order is insertion order, matching the file-backed store.
type RegistryStore struct {
	mu          sync.RWMutex
	entries     map[string]domain.KnowledgeBase
	order       []string
	defaultName string
	settings    domain.GlobalSettings
}

// NewRegistryStore creates a new in-memory registry store.
func NewRegistryStore() *RegistryStore {
	return &RegistryStore{
		entries:  make(map[string]domain.KnowledgeBase),
		settings: domain.GlobalSettings{Refs: true},
	}
}

// Save stores or updates a knowledge base, appending new names to the
// iteration order.
func (s *RegistryStore) Save(kb domain.KnowledgeBase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[kb.Name]; !ok {
		s.order = append(s.order, kb.Name)
	}
	s.entries[kb.Name] = kb
	return nil
}

// Get retrieves a knowledge base by name.
func (s *RegistryStore) Get(name string) (*domain.KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kb, ok := s.entries[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &kb, nil
}

// Delete removes a knowledge base.
func (s *RegistryStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; !ok {
		return domain.ErrNotFound
	}
	delete(s.entries, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.defaultName == name {
		s.defaultName = ""
	}
	return nil
}

// List returns all knowledge bases in insertion order.
func (s *RegistryStore) List() ([]domain.KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.KnowledgeBase, 0, len(s.order))
	for _, name := range s.order {
		result = append(result, s.entries[name])
	}
	return result, nil
}

// DefaultName returns the default entry's name, empty when unset.
func (s *RegistryStore) DefaultName() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultName, nil
}

// SetDefaultName updates the default pointer.
func (s *RegistryStore) SetDefaultName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name != "" {
		if _, ok := s.entries[name]; !ok {
			return domain.ErrNotFound
		}
	}
	s.defaultName = name
	return nil
}

// Settings returns the global settings.
func (s *RegistryStore) Settings() (domain.GlobalSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

// SaveSettings persists the global settings.
func (s *RegistryStore) SaveSettings(settings domain.GlobalSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

// Path returns a placeholder path; the store has no backing file.
func (s *RegistryStore) Path() string {
	return ":memory:"
}
