package driven

import "github.com/anomot/get-biji-knowledge-skill/internal/core/domain"

// TranscriptAccumulator appends orchestrated turns to a session's
// Markdown artifacts. One accumulator instance is one tracking window:
// its file pair is stamped on first use and reused until the process
// exits. A restarted process starts a fresh pair even for the same
// session.
type TranscriptAccumulator interface {
	// AppendTurn appends one completed turn. The Q&A file is created
	// with its header on the first call of the window; the citations
	// file is created lazily on the first call that actually carries
	// citations. All writes after a header are append-only.
	AppendTurn(turn domain.TranscriptTurn) error

	// QAPath returns the Q&A file path, empty before the first turn.
	QAPath() string

	// CitationsPath returns the citations file path, empty until a
	// turn carries citations.
	CitationsPath() string
}

// PlanBook maintains the batch-run checklist file.
type PlanBook interface {
	// Create writes the plan file with its task checklist and returns
	// its path.
	Create(description string, tasks []domain.PlanTask) (string, error)

	// Record appends one task's summary block to the plan file.
	// Missing plan files are ignored.
	Record(task domain.PlanTask, summary string) error
}
