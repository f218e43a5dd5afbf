package driving

import "github.com/anomot/get-biji-knowledge-skill/internal/core/domain"

// SessionService manages stored conversation sessions.
type SessionService interface {
	// List returns stored sessions newest first, filtered to one
	// knowledge base when the name is non-empty.
	List(knowledgeBase string) ([]domain.SessionInfo, error)

	// Show loads one session with its full history.
	Show(sessionID string) (*domain.Session, error)

	// Clear empties a session's history, keeping the record.
	Clear(sessionID string) error

	// Delete removes a session record entirely.
	Delete(sessionID string) error
}
