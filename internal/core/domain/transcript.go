package domain

// TranscriptTurn is one completed turn handed to the transcript
// accumulator for Markdown persistence.
type TranscriptTurn struct {
	// Question is the user's question.
	Question string

	// Answer is the full answer text.
	Answer string

	// Citations are the references attached to the answer, possibly empty.
	Citations []Citation

	// Thinking is the reasoning transcript, possibly empty.
	Thinking string

	// KnowledgeBase is the primary target's name.
	KnowledgeBase string

	// SessionID is the conversation the turn belongs to.
	SessionID string

	// SourceKnowledgeBases lists contributing knowledge bases when the
	// turn came from a fan-out; empty or single-element otherwise.
	SourceKnowledgeBases []string
}

// PlanTask is one (knowledge base, query) unit of a batch plan.
type PlanTask struct {
	// KnowledgeBase is the target knowledge base name.
	KnowledgeBase string `json:"kb_name"`

	// Query is the question to ask it.
	Query string `json:"query"`
}

// PlanSpec describes a batch multi-query run. Tasks come either from
// the Queries × KnowledgeBases expansion or as explicit Pairs.
type PlanSpec struct {
	// Description titles the plan file.
	Description string `json:"description"`

	// Queries are the questions to ask.
	Queries []string `json:"queries"`

	// KnowledgeBases are the target names. Empty means every
	// registered knowledge base.
	KnowledgeBases []string `json:"kbs"`

	// Pairs are explicit (knowledge base, query) tasks. When non-empty
	// they are the task list and the expansion fields are ignored.
	Pairs []PlanTask `json:"-"`

	// WritePlan controls whether the checklist file is created.
	WritePlan bool `json:"-"`
}

// Tasks expands the spec into its knowledge-base-major task list.
func (s PlanSpec) Tasks(knowledgeBases []string) []PlanTask {
	tasks := make([]PlanTask, 0, len(knowledgeBases)*len(s.Queries))
	for _, kb := range knowledgeBases {
		for _, q := range s.Queries {
			tasks = append(tasks, PlanTask{KnowledgeBase: kb, Query: q})
		}
	}
	return tasks
}

// PlanResult is the outcome of one plan task.
type PlanResult struct {
	// KnowledgeBase is the target that was queried.
	KnowledgeBase string `json:"kb_name"`

	// Query is the question asked.
	Query string `json:"query"`

	// Answer is the answer text, empty on failure.
	Answer string `json:"answer"`

	// Citations are the attached references.
	Citations []Citation `json:"refs,omitempty"`

	// Success reports whether the task produced an answer.
	Success bool `json:"success"`

	// Err is the failure description, empty on success.
	Err string `json:"error,omitempty"`
}

// PlanReport summarises a completed batch run.
type PlanReport struct {
	// Results are the per-task outcomes in execution order.
	Results []PlanResult `json:"results"`

	// PlanPath is the checklist file path, empty when none was written.
	PlanPath string `json:"plan_path,omitempty"`

	// Total is the number of tasks attempted.
	Total int `json:"total"`

	// Succeeded is the number of tasks that produced an answer.
	Succeeded int `json:"success"`
}
