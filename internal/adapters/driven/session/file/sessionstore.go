// Package file implements the JSON-file conversation store: one
// document per session, named after the session id, in a flat
// directory shared with the legacy tooling.
package file

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driven"
	"github.com/anomot/get-biji-knowledge-skill/internal/logger"
)

// Ensure SessionStore implements the interface.
var _ driven.SessionStore = (*SessionStore)(nil)

// SessionStore is a file-based implementation of driven.SessionStore.
type SessionStore struct {
	mu  sync.RWMutex
	dir string
}

// NewSessionStore creates a session store over the given directory.
// If dir is empty, defaults to ~/.config/biji/sessions.
func NewSessionStore(dir string) (*SessionStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".config", "biji", "sessions")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &SessionStore{dir: dir}, nil
}

// Save persists the full session record. Non-ASCII text is written
// raw, matching the files the legacy tooling produces.
func (s *SessionStore) Save(session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(session); err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(s.pathOf(session.SessionID), buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Load retrieves a session by id.
func (s *SessionStore) Load(sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.pathOf(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", sessionID, err)
	}
	if session.History == nil {
		session.History = []domain.Message{}
	}
	return &session, nil
}

// Latest returns the id of the most recently modified session file
// belonging to a knowledge base, empty when none exist.
func (s *SessionStore) Latest(knowledgeBase string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", fmt.Errorf("read session dir: %w", err)
	}

	var (
		latest   string
		bestTime time.Time
	)
	for _, entry := range entries {
		stem, ok := sessionStem(entry)
		if !ok || !belongsTo(stem, knowledgeBase) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime()
		if latest == "" || mod.After(bestTime) ||
			(mod.Equal(bestTime) && stem > latest) {
			latest = stem
			bestTime = mod
		}
	}
	return latest, nil
}

// List returns stored sessions newest first, filtered to one knowledge
// base when the name is non-empty. Unreadable files are skipped.
func (s *SessionStore) List(knowledgeBase string) ([]domain.SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read session dir: %w", err)
	}

	infos := make([]domain.SessionInfo, 0, len(entries))
	for _, entry := range entries {
		stem, ok := sessionStem(entry)
		if !ok {
			continue
		}
		if knowledgeBase != "" && !belongsTo(stem, knowledgeBase) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			logger.Warn("session %s unreadable: %v", stem, err)
			continue
		}
		var session domain.Session
		if err := json.Unmarshal(data, &session); err != nil {
			logger.Warn("session %s corrupt: %v", stem, err)
			continue
		}
		id := session.SessionID
		if id == "" {
			id = stem
		}
		kb, _ := domain.KnowledgeBaseOf(id)
		infos = append(infos, domain.SessionInfo{
			SessionID:     id,
			KnowledgeBase: kb,
			CreatedAt:     session.CreatedAt,
			Turns:         session.Turns(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt != infos[j].CreatedAt {
			return infos[i].CreatedAt > infos[j].CreatedAt
		}
		return infos[i].SessionID > infos[j].SessionID
	})
	return infos, nil
}

// Delete removes a stored session.
func (s *SessionStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.pathOf(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) pathOf(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

// sessionStem returns the session id a directory entry stores, false
// for anything that is not a session file.
func sessionStem(entry os.DirEntry) (string, bool) {
	if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
		return "", false
	}
	return strings.TrimSuffix(entry.Name(), ".json"), true
}

// belongsTo matches a session id against a knowledge base name. The id
// embeds the name, so a prefix check alone would confuse "notes" with
// "notes_archive"; the parsed name settles it.
func belongsTo(sessionID, knowledgeBase string) bool {
	if !strings.HasPrefix(sessionID, knowledgeBase+"_") {
		return false
	}
	kb, ok := domain.KnowledgeBaseOf(sessionID)
	return ok && kb == knowledgeBase
}
