// Package file implements the JSON-backed knowledge-base registry.
// The on-disk document is shared with the legacy tooling that first
// wrote these files, so the store reads old-schema files silently and
// rewrites them in the current schema.
package file

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driven"
	"github.com/anomot/get-biji-knowledge-skill/internal/logger"
)

// Ensure RegistryStore implements the interface.
var _ driven.RegistryStore = (*RegistryStore)(nil)

// RegistryStore is a file-based implementation of driven.RegistryStore.
// The whole document is read once at construction and rewritten on
// every mutation; concurrent external writers are last-writer-wins.
type RegistryStore struct {
	mu          sync.RWMutex
	filePath    string
	entries     map[string]domain.KnowledgeBase
	order       []string
	defaultName string
	settings    domain.GlobalSettings
}

// registryDocument mirrors the on-disk JSON. Pointer fields let the
// loader tell a key missing from an older file apart from an empty
// value, which is what drives the schema backfill.
type registryDocument struct {
	KnowledgeBases orderedEntries    `json:"knowledge_bases"`
	Default        *string           `json:"default"`
	GlobalSettings *registrySettings `json:"global_settings"`
}

// registryEntry is one knowledge base as stored on disk. The
// description field carries the legacy generation-state sentinels.
type registryEntry struct {
	APIKey      string  `json:"api_key"`
	TopicID     string  `json:"topic_id"`
	Description *string `json:"description"`
	LastUpdated *string `json:"last_updated"`
}

type registrySettings struct {
	Refs      *bool   `json:"refs"`
	OutputDir *string `json:"output_dir"`
}

// orderedEntries keeps the knowledge_bases object in file order.
// encoding/json loses object key order through a map, but registry
// iteration order is defined as insertion order, so the order is
// captured on decode and replayed on encode.
type orderedEntries struct {
	order   []string
	entries map[string]registryEntry
}

func (o orderedEntries) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range o.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(o.entries[name])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *orderedEntries) UnmarshalJSON(data []byte) error {
	o.order = nil
	o.entries = make(map[string]registryEntry)

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("knowledge_bases: expected object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("knowledge_bases: expected string key")
		}
		var entry registryEntry
		if err := dec.Decode(&entry); err != nil {
			return fmt.Errorf("knowledge_bases[%s]: %w", name, err)
		}
		o.order = append(o.order, name)
		o.entries[name] = entry
	}
	_, err = dec.Token()
	return err
}

// NewRegistryStore creates a registry store backed by the given file.
// If path is empty, defaults to ~/.config/biji/config.json. The file
// itself is not created until the first mutation.
func NewRegistryStore(path string) (*RegistryStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".config", "biji", "config.json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	s := &RegistryStore{
		filePath: path,
		entries:  make(map[string]domain.KnowledgeBase),
		settings: domain.DefaultGlobalSettings(),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads the registry from disk, replacing the in-memory state.
// A missing file yields an empty registry. Files written by older
// tooling are rewritten in the current schema, silently; only the
// rewrite failure is logged.
func (s *RegistryStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.entries = make(map[string]domain.KnowledgeBase)
			s.order = nil
			s.defaultName = ""
			s.settings = domain.DefaultGlobalSettings()
			return nil
		}
		return fmt.Errorf("read registry: %w", err)
	}

	var doc registryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse registry: %w", err)
	}

	entries := make(map[string]domain.KnowledgeBase, len(doc.KnowledgeBases.order))
	backfill := doc.GlobalSettings == nil
	for _, name := range doc.KnowledgeBases.order {
		raw := doc.KnowledgeBases.entries[name]
		if raw.Description == nil || raw.LastUpdated == nil {
			backfill = true
		}
		status, text := domain.ParseLegacyDescription(deref(raw.Description))
		entries[name] = domain.KnowledgeBase{
			Name:              name,
			APIKey:            raw.APIKey,
			TopicID:           raw.TopicID,
			Description:       text,
			DescriptionStatus: status,
			LastUpdated:       deref(raw.LastUpdated),
		}
	}

	settings := domain.DefaultGlobalSettings()
	if doc.GlobalSettings != nil {
		if doc.GlobalSettings.Refs == nil || doc.GlobalSettings.OutputDir == nil {
			backfill = true
		}
		if doc.GlobalSettings.Refs != nil {
			settings.Refs = *doc.GlobalSettings.Refs
		}
		settings.OutputDir = deref(doc.GlobalSettings.OutputDir)
	}

	s.entries = entries
	s.order = doc.KnowledgeBases.order
	s.defaultName = deref(doc.Default)
	s.settings = settings

	if backfill {
		if err := s.persistLocked(); err != nil {
			logger.Warn("registry schema backfill not persisted: %v", err)
		}
	}
	return nil
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
	return s.persistLocked()
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

// Delete removes a knowledge base, clearing the default pointer when
// it pointed at the removed entry.
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
	return s.persistLocked()
}

// List returns all knowledge bases in file order.
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

// SetDefaultName updates the default pointer. An empty name clears it.
func (s *RegistryStore) SetDefaultName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name != "" {
		if _, ok := s.entries[name]; !ok {
			return domain.ErrNotFound
		}
	}
	s.defaultName = name
	return s.persistLocked()
}

// Settings returns the global settings with defaults applied.
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
	return s.persistLocked()
}

// Path returns the backing file path.
func (s *RegistryStore) Path() string {
	return s.filePath
}

// persistLocked writes the whole document back (caller must hold lock).
// Non-ASCII text is written raw, matching the files the legacy tooling
// produces.
func (s *RegistryStore) persistLocked() error {
	entries := make(map[string]registryEntry, len(s.entries))
	for name, kb := range s.entries {
		entries[name] = registryEntry{
			APIKey:      kb.APIKey,
			TopicID:     kb.TopicID,
			Description: ptr(domain.LegacyDescription(kb.DescriptionStatus, kb.Description)),
			LastUpdated: ptr(kb.LastUpdated),
		}
	}
	doc := registryDocument{
		KnowledgeBases: orderedEntries{order: s.order, entries: entries},
		GlobalSettings: &registrySettings{
			Refs:      ptr(s.settings.Refs),
			OutputDir: ptr(s.settings.OutputDir),
		},
	}
	if s.defaultName != "" {
		doc.Default = ptr(s.defaultName)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	if err := os.WriteFile(s.filePath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
