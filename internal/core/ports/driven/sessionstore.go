package driven

import "github.com/anomot/get-biji-knowledge-skill/internal/core/domain"

// SessionStore persists conversation sessions, one record per session.
// Records are always written whole, never as diffs.
type SessionStore interface {
	// Save persists the full session record.
	Save(session domain.Session) error

	// Load retrieves a session by id.
	// Returns domain.ErrNotFound when absent.
	Load(sessionID string) (*domain.Session, error)

	// Latest returns the id of the most recently modified session
	// belonging to a knowledge base, empty when none exist.
	Latest(knowledgeBase string) (string, error)

	// List returns stored sessions newest first, filtered to one
	// knowledge base when the name is non-empty.
	List(knowledgeBase string) ([]domain.SessionInfo, error)

	// Delete removes a stored session.
	// Returns domain.ErrNotFound when absent.
	Delete(sessionID string) error
}
