package services

import (
	"fmt"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driven"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driving"
)

// Ensure SessionService implements the interface.
var _ driving.SessionService = (*SessionService)(nil)

// SessionService manages stored conversation sessions.
type SessionService struct {
	store driven.SessionStore
}

// NewSessionService creates a new session service.
func NewSessionService(store driven.SessionStore) *SessionService {
	return &SessionService{store: store}
}

// List returns stored sessions newest first.
func (s *SessionService) List(knowledgeBase string) ([]domain.SessionInfo, error) {
	return s.store.List(knowledgeBase)
}

// Show loads one session with its full history.
func (s *SessionService) Show(sessionID string) (*domain.Session, error) {
	session, err := s.store.Load(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", sessionID, err)
	}
	return session, nil
}

// Clear empties a session's history, keeping the record.
func (s *SessionService) Clear(sessionID string) error {
	session, err := s.store.Load(sessionID)
	if err != nil {
		return fmt.Errorf("session %q: %w", sessionID, err)
	}
	session.History = []domain.Message{}
	if err := s.store.Save(*session); err != nil {
		return fmt.Errorf("save session %q: %w", sessionID, err)
	}
	return nil
}

// Delete removes a session record entirely.
func (s *SessionService) Delete(sessionID string) error {
	if err := s.store.Delete(sessionID); err != nil {
		return fmt.Errorf("session %q: %w", sessionID, err)
	}
	return nil
}
