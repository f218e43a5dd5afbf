package services

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driven"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driving"
	"github.com/anomot/get-biji-knowledge-skill/internal/logger"
)

// Ensure MetadataService implements the interface.
var _ driving.MetadataService = (*MetadataService)(nil)

// minUsableAnswer is the shortest probe answer worth integrating.
// Shorter responses are refusals or boilerplate.
const minUsableAnswer = 20

// MetadataService derives knowledge-base descriptions by interrogating
// the corpus itself: a few probe questions, each against a fresh empty
// conversation, reduced by the description pipeline.
type MetadataService struct {
	search   *SearchService
	registry driving.RegistryService
	probes   driven.ProbeStore
}

// NewMetadataService creates a new metadata service. The search
// orchestrator is used statelessly: probe turns never touch the
// session store.
func NewMetadataService(search *SearchService, registry driving.RegistryService, probes driven.ProbeStore) *MetadataService {
	return &MetadataService{search: search, registry: registry, probes: probes}
}

// Sync runs the introspective query rounds against one knowledge base
// and stores the integrated description.
func (s *MetadataService) Sync(ctx context.Context, name string, opts domain.SyncOptions) (*domain.SyncOutcome, error) {
	kb, err := s.registry.Get(name)
	if err != nil {
		return nil, err
	}

	rounds := opts.Rounds
	if rounds <= 0 {
		rounds = domain.DefaultSyncRounds
	}
	if rounds > domain.DefaultSyncRounds {
		rounds = domain.DefaultSyncRounds
	}

	queries, err := s.probeQueries(rounds)
	if err != nil {
		return nil, fmt.Errorf("load probes: %w", err)
	}

	var answers []string
	for i, query := range queries {
		logger.Section("probe %d/%d against %s", i+1, len(queries), kb.Name)

		// Deep thinking on, citations off, no history: each probe must
		// see the corpus cold, or the API treats it as a follow-up and
		// returns thin or empty answers.
		req := domain.StreamRequest{
			Question:  query,
			APIKey:    kb.APIKey,
			TopicID:   kb.TopicID,
			DeepThink: true,
			Refs:      false,
		}
		outcome, err := s.search.streamTurn(ctx, req, domain.SearchOptions{MaxRetries: 1})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("probe %d failed: %v", i+1, err)
			continue
		}
		if utf8.RuneCountInString(outcome.Answer) < minUsableAnswer {
			logger.Debug("probe %d answer too short (%d runes), skipping", i+1, utf8.RuneCountInString(outcome.Answer))
			continue
		}
		answers = append(answers, outcome.Answer)
	}

	if len(answers) == 0 {
		if !opts.DryRun {
			if err := s.registry.SetDescription(name, domain.DescriptionFailed, ""); err != nil {
				logger.Warn("mark description failed for %s: %v", name, err)
			}
		}
		return nil, fmt.Errorf("%w: all probe rounds came back empty for %s", domain.ErrNoAnswer, name)
	}

	var description string
	if len(answers) == 1 {
		description = extractDescription(answers[0])
	} else {
		logger.Debug("integrating %d probe rounds", len(answers))
		description = integrateRounds(answers)
	}

	outcome := &domain.SyncOutcome{
		KnowledgeBase: kb.Name,
		Description:   description,
		RoundsUsed:    len(answers),
	}
	if opts.DryRun {
		return outcome, nil
	}

	if err := s.registry.SetDescription(name, domain.DescriptionReady, description); err != nil {
		return nil, fmt.Errorf("store description for %s: %w", name, err)
	}
	outcome.Written = true
	return outcome, nil
}

// probeQueries picks the probe sequence for a round count. A single
// round uses the self-contained variant; multi-round runs walk the
// themed probes in order.
func (s *MetadataService) probeQueries(rounds int) ([]string, error) {
	names := []string{driven.ProbeSingle}
	if rounds > 1 {
		names = []string{driven.ProbeThemes, driven.ProbeContent, driven.ProbeScenarios}[:rounds]
	}

	queries := make([]string, 0, len(names))
	for _, name := range names {
		q, err := s.probes.Load(name)
		if err != nil {
			return nil, fmt.Errorf("probe %q: %w", name, err)
		}
		queries = append(queries, q)
	}
	return queries, nil
}
