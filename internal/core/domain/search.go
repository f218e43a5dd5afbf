package domain

// SearchOptions configures one orchestrated search call.
type SearchOptions struct {
	// ExplicitNames selects knowledge bases by name, overriding Mode.
	ExplicitNames []string

	// Mode is the resolver selection mode when no names are given.
	Mode SelectionMode

	// NewSession starts a fresh conversation instead of resuming the
	// latest one for each target knowledge base.
	NewSession bool

	// DeepThink requests the API's deep reasoning mode.
	DeepThink bool

	// Refs requests citations alongside the answer.
	Refs bool

	// MaxRetries bounds rate-limit retries per request. Zero disables
	// retrying; the orchestrator default is one retry.
	MaxRetries int

	// OnChunk, when non-nil, receives each answer fragment as it
	// arrives, enabling incremental display during decode.
	OnChunk func(text string)

	// OnNotice, when non-nil, receives advisory stream messages
	// (risk notices, thinking duration reports).
	OnNotice func(text string)

	// OnSession, when non-nil, is told which conversation the turn
	// joins. For a single target it fires before streaming starts;
	// for fan-out the combined session is only chosen at the end.
	OnSession func(sessionID string, resumed bool)
}

// RecallOptions configures one raw recall call.
type RecallOptions struct {
	// KnowledgeBase names the target; empty means the default.
	KnowledgeBase string

	// TopK caps how many scored items come back.
	TopK int

	// IntentRewrite asks the API to rewrite the query intent first.
	IntentRewrite bool

	// SelectMatrix asks the API to re-rank with its selection matrix.
	SelectMatrix bool

	// WithHistory carries the latest session history as context.
	WithHistory bool
}

// Citation is a reference to a source note returned with an answer.
type Citation struct {
	// Title is the note title.
	Title string `json:"title"`

	// TypeTag is the upstream rag_type classification.
	TypeTag string `json:"rag_type"`

	// NoteID identifies the source note.
	NoteID string `json:"note_id"`

	// DetailSnippets are nested content excerpts, in upstream order.
	DetailSnippets []string `json:"detail_snippets,omitempty"`

	// SourceKnowledgeBase is set only during multi-knowledge-base
	// fan-out, naming the knowledge base that produced this citation.
	SourceKnowledgeBase string `json:"source_knowledge_base,omitempty"`
}

// SearchResult is the structured outcome of one orchestrated search.
// It is transient: produced fresh per call, never persisted as-is.
type SearchResult struct {
	// Answer is the accumulated (or combined) answer text.
	Answer string `json:"answer"`

	// Citations are the references attached to the answer.
	Citations []Citation `json:"citations,omitempty"`

	// Thinking is the reasoning transcript, possibly empty.
	Thinking string `json:"thinking,omitempty"`

	// SessionID is the conversation the turn was appended to.
	SessionID string `json:"session_id"`

	// SourceKnowledgeBases lists the knowledge bases that contributed,
	// in resolved order. Failed fan-out targets are absent.
	SourceKnowledgeBases []string `json:"source_knowledge_bases"`
}

// StreamRequest is one outbound streaming search call.
type StreamRequest struct {
	// Question is the natural-language query.
	Question string

	// APIKey is the bearer secret for the target knowledge base.
	APIKey string

	// TopicID is the target corpus identifier.
	TopicID string

	// DeepThink requests deep reasoning.
	DeepThink bool

	// Refs requests citations.
	Refs bool

	// History is the conversational context, oldest first.
	History []Message
}

// RecallRequest is one outbound raw recall call.
type RecallRequest struct {
	// Question is the natural-language query.
	Question string

	// APIKey is the bearer secret for the target knowledge base.
	APIKey string

	// TopicID is the target corpus identifier.
	TopicID string

	// TopK caps how many scored items come back.
	TopK int

	// IntentRewrite asks the API to rewrite the query intent first.
	IntentRewrite bool

	// SelectMatrix asks the API to re-rank with its selection matrix.
	SelectMatrix bool

	// History is optional conversational context.
	History []Message
}

// RecallItem is one scored raw retrieval hit.
type RecallItem struct {
	// Title is the note title.
	Title string `json:"title"`

	// TypeTag is the upstream type classification.
	TypeTag string `json:"type"`

	// Score is the relevance score.
	Score float64 `json:"score"`

	// RecallSource names the retrieval channel that surfaced the item.
	RecallSource string `json:"recall_source"`

	// NoteID identifies the source note.
	NoteID string `json:"id"`

	// Content is the matched note content.
	Content string `json:"content"`
}
