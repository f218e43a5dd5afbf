package domain

import "time"

// DefaultRetryDelay is the backoff applied to a rate-limit signal that
// carries no explicit delay of its own.
const DefaultRetryDelay = 30 * time.Second

// MessageTag classifies one decoded stream frame. The set is closed:
// every frame maps to exactly one tag, and codes outside the protocol
// table map to TagIgnore rather than falling through silently.
type MessageTag int

// Stream frame categories.
const (
	// TagIgnore covers any unrecognised frame. No state change.
	TagIgnore MessageTag = iota

	// TagProgress is a processing notice. Informational only.
	TagProgress

	// TagAnswerChunk appends to the answer text. The only tag that
	// contributes to the final answer.
	TagAnswerChunk

	// TagStreamEnd marks a soft completion boundary. It does not set
	// the terminal status by itself.
	TagStreamEnd

	// TagRiskNotice is a content advisory. Informational only.
	TagRiskNotice

	// TagThinking appends to the reasoning transcript.
	TagThinking

	// TagThinkingDuration reports reasoning wall time. Informational only.
	TagThinkingDuration

	// TagCitations replaces the citation list wholesale. Last writer wins.
	TagCitations

	// TagHardError aborts decoding immediately; the partial answer is
	// discarded by the caller.
	TagHardError

	// TagRateLimit signals throttling. It sets the rate_limited terminal
	// status and carries a retry delay, but does not abort decoding
	// structurally; the retry decision belongs to the orchestrator.
	TagRateLimit
)

// Wire msg_type codes used by the upstream stream protocol.
const (
	codeHardError        = 0
	codeAnswerChunk      = 1
	codeStreamEnd        = 3
	codeProgress         = 6
	codeRiskNotice       = 8
	codeThinking         = 21
	codeThinkingDuration = 22
	codeCitations        = 105
)

// TagForCode maps a wire msg_type onto its tag. Codes outside the
// protocol table map to TagIgnore. Rate limiting shares the hard-error
// code on the wire and is told apart by payload, so this mapping alone
// never yields TagRateLimit.
func TagForCode(code int) MessageTag {
	switch code {
	case codeHardError:
		return TagHardError
	case codeAnswerChunk:
		return TagAnswerChunk
	case codeStreamEnd:
		return TagStreamEnd
	case codeProgress:
		return TagProgress
	case codeRiskNotice:
		return TagRiskNotice
	case codeThinking:
		return TagThinking
	case codeThinkingDuration:
		return TagThinkingDuration
	case codeCitations:
		return TagCitations
	default:
		return TagIgnore
	}
}

// String returns a name for the tag, for verbose logging.
func (t MessageTag) String() string {
	switch t {
	case TagIgnore:
		return "ignore"
	case TagProgress:
		return "progress"
	case TagAnswerChunk:
		return "answer_chunk"
	case TagStreamEnd:
		return "stream_end"
	case TagRiskNotice:
		return "risk_notice"
	case TagThinking:
		return "thinking"
	case TagThinkingDuration:
		return "thinking_duration"
	case TagCitations:
		return "citations"
	case TagHardError:
		return "hard_error"
	case TagRateLimit:
		return "rate_limit"
	default:
		return "unknown"
	}
}

// TerminalStatus is the final disposition of a decoded stream.
type TerminalStatus string

// Terminal states.
const (
	// StatusUnset means the stream ended without an explicit signal.
	StatusUnset TerminalStatus = ""

	// StatusOK means the stream completed normally.
	StatusOK TerminalStatus = "ok"

	// StatusError means the server sent a hard error.
	StatusError TerminalStatus = "error"

	// StatusRateLimited means the server signalled throttling.
	StatusRateLimited TerminalStatus = "rate_limited"
)

// String returns the string representation.
func (s TerminalStatus) String() string {
	return string(s)
}

// StreamOutcome is the reduced state of one decoded stream.
type StreamOutcome struct {
	// Answer is the accumulated answer text.
	Answer string

	// Thinking is the accumulated reasoning transcript.
	Thinking string

	// Citations is the last citation list the stream carried.
	Citations []Citation

	// Status is the terminal disposition.
	Status TerminalStatus

	// Message is the server-supplied text of a hard error or
	// rate-limit signal, empty otherwise.
	Message string

	// RetryDelay is how long a rate-limited caller should wait before
	// retrying. Zero unless Status is rate_limited.
	RetryDelay time.Duration
}
