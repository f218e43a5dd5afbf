package domain

// DefaultSyncRounds is how many introspective queries a description
// sync runs against a knowledge base.
const DefaultSyncRounds = 3

// MaxDescriptionRunes caps generated descriptions; longer text is
// truncated with an ellipsis.
const MaxDescriptionRunes = 180

// SyncOptions configures one description synchronisation run.
type SyncOptions struct {
	// Rounds is how many introspective queries to issue (1..3).
	// Zero means DefaultSyncRounds.
	Rounds int

	// DryRun derives the description without writing it back.
	DryRun bool
}

// SyncOutcome reports one knowledge base's description sync.
type SyncOutcome struct {
	// KnowledgeBase is the synced entry's name.
	KnowledgeBase string `json:"knowledge_base"`

	// Description is the derived text.
	Description string `json:"description"`

	// RoundsUsed is how many query rounds produced usable material.
	RoundsUsed int `json:"rounds_used"`

	// Written reports whether the registry was updated.
	Written bool `json:"written"`
}
