package driving

import (
	"context"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
)

// PlanService executes batch multi-query runs against several
// knowledge bases, maintaining an on-disk task checklist as it goes.
type PlanService interface {
	// Run expands the spec into (knowledge base, query) tasks,
	// executes them sequentially with inter-call pacing, and returns
	// the per-task outcomes. Task failures are absorbed into the
	// report; Run fails only on empty input or unknown target names.
	Run(ctx context.Context, spec domain.PlanSpec) (*domain.PlanReport, error)
}
