package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driven"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driving"
	"github.com/anomot/get-biji-knowledge-skill/internal/logger"
)

// Ensure RegistryService implements the interface.
var _ driving.RegistryService = (*RegistryService)(nil)

// RegistryService manages the knowledge-base registry. It owns the
// default-pointer invariant: a non-empty registry always has exactly
// one default entry.
type RegistryService struct {
	store driven.RegistryStore

	// now is swappable for deterministic timestamps in tests.
	now func() time.Time
}

// NewRegistryService creates a new registry service.
func NewRegistryService(store driven.RegistryStore) *RegistryService {
	return &RegistryService{store: store, now: time.Now}
}

// Add registers a new knowledge base. The first entry ever added
// becomes the default automatically.
func (s *RegistryService) Add(kb domain.KnowledgeBase, setDefault bool) error {
	kb.Name = strings.TrimSpace(kb.Name)
	if kb.Name == "" {
		return fmt.Errorf("%w: knowledge base name is required", domain.ErrInvalidInput)
	}
	if kb.APIKey == "" {
		return fmt.Errorf("%w: api key is required", domain.ErrInvalidInput)
	}
	if kb.TopicID == "" {
		return fmt.Errorf("%w: topic id is required", domain.ErrInvalidInput)
	}

	if _, err := s.store.Get(kb.Name); err == nil {
		return fmt.Errorf("knowledge base %q: %w", kb.Name, domain.ErrAlreadyExists)
	}

	if kb.DescriptionStatus == "" {
		kb.DescriptionStatus = domain.DescriptionEmpty
		if kb.Description != "" {
			kb.DescriptionStatus = domain.DescriptionReady
			kb.Touch(s.now())
		}
	}

	existing, err := s.store.List()
	if err != nil {
		return fmt.Errorf("list knowledge bases: %w", err)
	}

	if err := s.store.Save(kb); err != nil {
		return fmt.Errorf("save knowledge base %q: %w", kb.Name, err)
	}

	if setDefault || len(existing) == 0 {
		if err := s.store.SetDefaultName(kb.Name); err != nil {
			return fmt.Errorf("set default knowledge base: %w", err)
		}
	}
	logger.Info("registered knowledge base %q", kb.Name)
	return nil
}

// Upsert adds or wholesale-replaces a knowledge base. Replaced entries
// keep their registry position. The default pointer is claimed when
// forced or when no default exists yet.
func (s *RegistryService) Upsert(kb domain.KnowledgeBase, setDefault bool) error {
	kb.Name = strings.TrimSpace(kb.Name)
	if kb.Name == "" {
		return fmt.Errorf("%w: knowledge base name is required", domain.ErrInvalidInput)
	}
	if kb.APIKey == "" {
		return fmt.Errorf("%w: api key is required", domain.ErrInvalidInput)
	}
	if kb.TopicID == "" {
		return fmt.Errorf("%w: topic id is required", domain.ErrInvalidInput)
	}

	if kb.DescriptionStatus == "" {
		kb.DescriptionStatus = domain.DescriptionEmpty
		if kb.Description != "" {
			kb.DescriptionStatus = domain.DescriptionReady
			kb.Touch(s.now())
		}
	}

	if err := s.store.Save(kb); err != nil {
		return fmt.Errorf("save knowledge base %q: %w", kb.Name, err)
	}

	defaultName, err := s.store.DefaultName()
	if err != nil {
		return fmt.Errorf("read default knowledge base: %w", err)
	}
	if setDefault || defaultName == "" {
		if err := s.store.SetDefaultName(kb.Name); err != nil {
			return fmt.Errorf("set default knowledge base: %w", err)
		}
	}
	logger.Info("stored knowledge base %q", kb.Name)
	return nil
}

// Remove deletes a knowledge base, reassigning the default pointer to
// the first surviving entry when the default itself goes away.
func (s *RegistryService) Remove(name string) error {
	defaultName, err := s.store.DefaultName()
	if err != nil {
		return fmt.Errorf("read default knowledge base: %w", err)
	}

	if err := s.store.Delete(name); err != nil {
		return fmt.Errorf("delete knowledge base %q: %w", name, err)
	}

	if defaultName != name {
		return nil
	}

	remaining, err := s.store.List()
	if err != nil {
		return fmt.Errorf("list knowledge bases: %w", err)
	}
	next := ""
	if len(remaining) > 0 {
		next = remaining[0].Name
	}
	if err := s.store.SetDefaultName(next); err != nil {
		return fmt.Errorf("reassign default knowledge base: %w", err)
	}
	if next != "" {
		logger.Info("default knowledge base is now %q", next)
	}
	return nil
}

// Get retrieves one knowledge base by name.
func (s *RegistryService) Get(name string) (*domain.KnowledgeBase, error) {
	kb, err := s.store.Get(name)
	if err != nil {
		return nil, fmt.Errorf("knowledge base %q: %w", name, err)
	}
	return kb, nil
}

// List returns all knowledge bases in registry order.
func (s *RegistryService) List() ([]domain.KnowledgeBase, error) {
	return s.store.List()
}

// Default returns the default knowledge base.
func (s *RegistryService) Default() (*domain.KnowledgeBase, error) {
	name, err := s.store.DefaultName()
	if err != nil {
		return nil, fmt.Errorf("read default knowledge base: %w", err)
	}
	if name == "" {
		return nil, domain.ErrNoKnowledgeBase
	}
	kb, err := s.store.Get(name)
	if err != nil {
		return nil, fmt.Errorf("default knowledge base %q: %w", name, err)
	}
	return kb, nil
}

// SetDefault marks an existing entry as the default.
func (s *RegistryService) SetDefault(name string) error {
	if _, err := s.store.Get(name); err != nil {
		return fmt.Errorf("knowledge base %q: %w", name, err)
	}
	if err := s.store.SetDefaultName(name); err != nil {
		return fmt.Errorf("set default knowledge base: %w", err)
	}
	return nil
}

// SetDescription updates an entry's description state and text,
// stamping its last-updated time.
func (s *RegistryService) SetDescription(name string, status domain.DescriptionStatus, text string) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: description status %q", domain.ErrInvalidInput, status)
	}

	kb, err := s.store.Get(name)
	if err != nil {
		return fmt.Errorf("knowledge base %q: %w", name, err)
	}

	kb.DescriptionStatus = status
	kb.Description = ""
	if status == domain.DescriptionReady {
		kb.Description = text
	}
	kb.Touch(s.now())

	if err := s.store.Save(*kb); err != nil {
		return fmt.Errorf("save knowledge base %q: %w", name, err)
	}
	return nil
}

// Settings returns the global settings with defaults applied.
func (s *RegistryService) Settings() (domain.GlobalSettings, error) {
	return s.store.Settings()
}

// SetRefs toggles citation display.
func (s *RegistryService) SetRefs(enabled bool) error {
	settings, err := s.store.Settings()
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	settings.Refs = enabled
	if err := s.store.SaveSettings(settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// SetOutputDir points transcript output at a directory, creating it
// when missing. Creation failures abort before any registry mutation.
func (s *RegistryService) SetOutputDir(dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return fmt.Errorf("%w: output directory is required", domain.ErrInvalidInput)
	}
	dir, err := expandHome(dir)
	if err != nil {
		return fmt.Errorf("expand output directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %q: %w", dir, err)
	}

	settings, err := s.store.Settings()
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	settings.OutputDir = dir
	if err := s.store.SaveSettings(settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// expandHome resolves a leading ~ against the current user's home
// directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}
