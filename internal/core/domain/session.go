package domain

import (
	"fmt"
	"time"
)

// SessionIDLayout is the timestamp portion of a session identifier.
const SessionIDLayout = "20060102_150405"

// CreatedAtLayout is the ISO-8601 form stored in session files.
const CreatedAtLayout = "2006-01-02T15:04:05"

// Role identifies the author of a conversation message.
type Role string

// Conversation roles.
const (
	// RoleUser marks a question from the user.
	RoleUser Role = "user"

	// RoleAssistant marks an answer from the remote API.
	RoleAssistant Role = "assistant"
)

// IsValid returns true if the role is recognised.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// Message is one entry in a session's turn history.
// Field order matches the session file convention.
type Message struct {
	// Content is the message text.
	Content string `json:"content"`

	// Role is who authored the message.
	Role Role `json:"role"`
}

// Session is an ordered conversation history scoped to one knowledge base.
// History length is always even: turns append in user/assistant pairs.
type Session struct {
	// SessionID is "{knowledgeBaseName}_{YYYYMMDD_HHMMSS}".
	SessionID string `json:"session_id"`

	// CreatedAt is an ISO-8601 creation timestamp.
	CreatedAt string `json:"created_at"`

	// History is the ordered turn history.
	History []Message `json:"history"`
}

// NewSessionID builds a session identifier for a knowledge base at a time.
// No collision check is performed; the timestamp is the uniqueness source.
func NewSessionID(knowledgeBase string, at time.Time) string {
	return fmt.Sprintf("%s_%s", knowledgeBase, at.Format(SessionIDLayout))
}

// NewSession creates an empty session for a knowledge base.
func NewSession(knowledgeBase string, at time.Time) Session {
	return Session{
		SessionID: NewSessionID(knowledgeBase, at),
		CreatedAt: at.Format(CreatedAtLayout),
		History:   []Message{},
	}
}

// AppendTurn adds one completed question/answer pair to the history.
func (s *Session) AppendTurn(question, answer string) {
	s.History = append(s.History,
		Message{Content: question, Role: RoleUser},
		Message{Content: answer, Role: RoleAssistant},
	)
}

// Turns returns the number of completed question/answer pairs.
func (s Session) Turns() int {
	return len(s.History) / 2
}

// KnowledgeBaseOf extracts the knowledge-base name from a session id by
// stripping the trailing timestamp. Names may themselves contain
// underscores, so only the fixed-width suffix is removed.
func KnowledgeBaseOf(sessionID string) (string, bool) {
	// "_" + "20060102_150405"
	const suffixLen = 1 + len(SessionIDLayout)
	if len(sessionID) <= suffixLen {
		return "", false
	}
	cut := len(sessionID) - suffixLen
	if sessionID[cut] != '_' {
		return "", false
	}
	if _, err := time.Parse(SessionIDLayout, sessionID[cut+1:]); err != nil {
		return "", false
	}
	return sessionID[:cut], true
}

// SessionInfo is a listing row for a stored session.
type SessionInfo struct {
	// SessionID identifies the session.
	SessionID string `json:"session_id"`

	// KnowledgeBase is the owning knowledge base name.
	KnowledgeBase string `json:"knowledge_base"`

	// CreatedAt is the stored creation timestamp.
	CreatedAt string `json:"created_at"`

	// Turns is the number of completed question/answer pairs.
	Turns int `json:"turns"`
}
