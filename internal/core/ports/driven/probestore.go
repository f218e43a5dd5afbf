package driven

// Probe names understood by every store. Each names one introspective
// question the metadata synchroniser sends to a knowledge base.
const (
	// ProbeThemes asks for the corpus's core topics and keyword tags.
	ProbeThemes = "themes"

	// ProbeContent asks what kinds of material the corpus records.
	ProbeContent = "content"

	// ProbeScenarios asks what the corpus is useful for.
	ProbeScenarios = "scenarios"

	// ProbeSingle is the self-contained one-shot variant used when
	// only a single round is requested.
	ProbeSingle = "single"
)

// ProbeStore supplies the introspective probe prompts. Implementations
// may let users override individual probes on disk; a missing override
// falls back to the embedded default rather than erroring.
type ProbeStore interface {
	// Load returns the probe text for a name.
	Load(name string) (string, error)
}
