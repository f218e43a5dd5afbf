package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driven"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driving"
	"github.com/anomot/get-biji-knowledge-skill/internal/logger"
)

// Ensure PlanService implements the interface.
var _ driving.PlanService = (*PlanService)(nil)

// defaultPlanDescription titles plans that come without one.
const defaultPlanDescription = "多库联合查询"

// recordSummaryRunes caps how much of an answer goes into a plan
// record.
const recordSummaryRunes = 300

// PlanService executes batch multi-query runs. Each task is one
// (knowledge base, query) pair, run as a fresh conversation through
// the search orchestrator; the shared pacer spaces the calls out.
type PlanService struct {
	search   driving.SearchService
	registry driven.RegistryStore
	planBook driven.PlanBook
}

// NewPlanService creates a new plan service.
func NewPlanService(search driving.SearchService, registry driven.RegistryStore, planBook driven.PlanBook) *PlanService {
	return &PlanService{search: search, registry: registry, planBook: planBook}
}

// Run expands the spec into tasks, executes them sequentially, and
// returns the per-task outcomes.
func (s *PlanService) Run(ctx context.Context, spec domain.PlanSpec) (*domain.PlanReport, error) {
	tasks, err := s.expandTasks(spec)
	if err != nil {
		return nil, err
	}

	description := strings.TrimSpace(spec.Description)
	if description == "" {
		description = defaultPlanDescription
	}

	report := &domain.PlanReport{Total: len(tasks)}

	if spec.WritePlan {
		path, err := s.planBook.Create(description, tasks)
		if err != nil {
			return nil, fmt.Errorf("create plan file: %w", err)
		}
		report.PlanPath = path
		logger.Info("plan file created at %s", path)
	}

	for i, task := range tasks {
		logger.Section("task %d/%d: %s ← %q", i+1, len(tasks), task.KnowledgeBase, task.Query)

		result, err := s.search.Ask(ctx, task.Query, domain.SearchOptions{
			ExplicitNames: []string{task.KnowledgeBase},
			NewSession:    true,
			DeepThink:     true,
			Refs:          true,
			MaxRetries:    domain.DefaultMaxRetries,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("task %d failed: %v", i+1, err)
			report.Results = append(report.Results, domain.PlanResult{
				KnowledgeBase: task.KnowledgeBase,
				Query:         task.Query,
				Err:           err.Error(),
			})
			continue
		}

		report.Results = append(report.Results, domain.PlanResult{
			KnowledgeBase: task.KnowledgeBase,
			Query:         task.Query,
			Answer:        result.Answer,
			Citations:     result.Citations,
			Success:       true,
		})
		report.Succeeded++

		if spec.WritePlan {
			if err := s.planBook.Record(task, firstRunes(result.Answer, recordSummaryRunes)); err != nil {
				logger.Warn("record task %d: %v", i+1, err)
			}
		}
	}

	return report, nil
}

// expandTasks turns the spec into its task list: explicit pairs pass
// through after name validation, otherwise the knowledge-base-major
// Queries × KnowledgeBases expansion applies.
func (s *PlanService) expandTasks(spec domain.PlanSpec) ([]domain.PlanTask, error) {
	if len(spec.Pairs) > 0 {
		names := make([]string, 0, len(spec.Pairs))
		seen := make(map[string]struct{}, len(spec.Pairs))
		for _, task := range spec.Pairs {
			if task.Query == "" {
				return nil, fmt.Errorf("%w: task for %s has no query", domain.ErrInvalidInput, task.KnowledgeBase)
			}
			if _, ok := seen[task.KnowledgeBase]; !ok {
				seen[task.KnowledgeBase] = struct{}{}
				names = append(names, task.KnowledgeBase)
			}
		}
		if _, err := s.targetNames(names); err != nil {
			return nil, err
		}
		return spec.Pairs, nil
	}

	if len(spec.Queries) == 0 {
		return nil, fmt.Errorf("%w: no queries given", domain.ErrInvalidInput)
	}
	names, err := s.targetNames(spec.KnowledgeBases)
	if err != nil {
		return nil, err
	}
	return spec.Tasks(names), nil
}

// targetNames resolves the plan's knowledge-base list, defaulting to
// every registered entry and rejecting unknown names outright.
func (s *PlanService) targetNames(requested []string) ([]string, error) {
	entries, err := s.registry.List()
	if err != nil {
		return nil, fmt.Errorf("list knowledge bases: %w", err)
	}
	if len(entries) == 0 {
		return nil, domain.ErrNoKnowledgeBase
	}

	registered := make(map[string]struct{}, len(entries))
	for _, kb := range entries {
		registered[kb.Name] = struct{}{}
	}

	if len(requested) == 0 {
		names := make([]string, len(entries))
		for i, kb := range entries {
			names[i] = kb.Name
		}
		return names, nil
	}

	var unknown []string
	for _, name := range requested {
		if _, ok := registered[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: unknown knowledge bases: %s",
			domain.ErrInvalidInput, strings.Join(unknown, ", "))
	}
	return requested, nil
}

// firstRunes returns the first n runes of s.
func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
