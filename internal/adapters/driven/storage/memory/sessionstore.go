package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driven"
)

// Ensure SessionStore implements the interface.
var _ driven.SessionStore = (*SessionStore)(nil)

// sessionRecord pairs a stored session with its last save time, the
// in-memory stand-in for file modification time.
type sessionRecord struct {
	session domain.Session
	savedAt time.Time
	seq     int
}

// SessionStore is an in-memory implementation of driven.SessionStore.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]sessionRecord
	seq      int

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]sessionRecord),
		now:      time.Now,
	}
}

// Save persists the full session record.
func (s *SessionStore) Save(session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.sessions[session.SessionID] = sessionRecord{
		session: session,
		savedAt: s.now(),
		seq:     s.seq,
	}
	return nil
}

// Load retrieves a session by id.
func (s *SessionStore) Load(sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	session := rec.session
	session.History = append([]domain.Message(nil), rec.session.History...)
	return &session, nil
}

// Latest returns the most recently saved session id for a knowledge
// base, empty when none exist.
func (s *SessionStore) Latest(knowledgeBase string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		latest   string
		bestSeq  int
		bestTime time.Time
	)
	for id, rec := range s.sessions {
		if !belongsTo(id, knowledgeBase) {
			continue
		}
		if latest == "" || rec.savedAt.After(bestTime) ||
			(rec.savedAt.Equal(bestTime) && rec.seq > bestSeq) {
			latest = id
			bestSeq = rec.seq
			bestTime = rec.savedAt
		}
	}
	return latest, nil
}

// List returns stored sessions newest first.
func (s *SessionStore) List(knowledgeBase string) ([]domain.SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	infos := make([]domain.SessionInfo, 0, len(s.sessions))
	for id, rec := range s.sessions {
		if knowledgeBase != "" && !belongsTo(id, knowledgeBase) {
			continue
		}
		kb, _ := domain.KnowledgeBaseOf(id)
		infos = append(infos, domain.SessionInfo{
			SessionID:     id,
			KnowledgeBase: kb,
			CreatedAt:     rec.session.CreatedAt,
			Turns:         rec.session.Turns(),
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
	if _, ok := s.sessions[sessionID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
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
