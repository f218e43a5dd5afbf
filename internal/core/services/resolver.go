package services

import (
	"sort"
	"strings"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driven"
	"github.com/anomot/get-biji-knowledge-skill/internal/logger"
)

// autoRouteLimit caps how many knowledge bases auto mode targets.
const autoRouteLimit = 3

// Resolver picks the target knowledge bases for a query. It owns the
// process-lifetime sticky scope: the memory of the last selection,
// replayed when a call names no mode and no knowledge bases. The scope
// is never persisted.
type Resolver struct {
	registry driven.RegistryStore
	scope    domain.ScopeState
}

// NewResolver creates a resolver over a registry.
func NewResolver(registry driven.RegistryStore) *Resolver {
	return &Resolver{registry: registry}
}

// Scope returns a copy of the current sticky scope.
func (r *Resolver) Scope() domain.ScopeState {
	names := make([]string, len(r.scope.LastNames))
	copy(names, r.scope.LastNames)
	return domain.ScopeState{LastMode: r.scope.LastMode, LastNames: names}
}

// Resolve returns the knowledge bases a query should target, in
// registry order. Selection priority: explicit names, then the given
// mode, then the sticky scope, then the default entry. Resolve never
// fails; when nothing matches under any rule the list is empty and the
// caller reports an unconfigured state.
func (r *Resolver) Resolve(explicitNames []string, mode domain.SelectionMode, query string) []domain.KnowledgeBase {
	entries, err := r.registry.List()
	if err != nil {
		logger.Warn("registry unavailable: %v", err)
		return nil
	}

	switch {
	case len(explicitNames) > 0:
		targets := filterByName(entries, explicitNames)
		r.remember(domain.ModeExplicit, targets)
		return targets

	case mode == domain.ModeDefault:
		targets := r.defaultTarget(entries)
		r.remember(domain.ModeDefault, targets)
		return targets

	case mode == domain.ModeAll:
		r.remember(domain.ModeAll, entries)
		return entries

	case mode == domain.ModeAuto:
		targets := r.route(entries, query)
		r.remember(domain.ModeAuto, targets)
		return targets

	default:
		// No names and no mode: replay the sticky scope against the
		// current registry, since entries may have been removed.
		if r.scope.LastMode != domain.ModeNone && len(r.scope.LastNames) > 0 {
			targets := filterByName(entries, r.scope.LastNames)
			r.remember(r.scope.LastMode, targets)
			return targets
		}
		targets := r.defaultTarget(entries)
		r.remember(domain.ModeDefault, targets)
		return targets
	}
}

// route scores every described knowledge base against the query and
// returns the top scorers, falling back to the default entry when
// nothing overlaps at all.
func (r *Resolver) route(entries []domain.KnowledgeBase, query string) []domain.KnowledgeBase {
	queryTokens := tokenise(query)
	if len(queryTokens) == 0 {
		return r.defaultTarget(entries)
	}

	type match struct {
		kb    domain.KnowledgeBase
		score float64
	}
	var matches []match
	for _, kb := range entries {
		if !kb.HasDescription() {
			continue
		}
		score := overlapScore(queryTokens, tokenise(kb.Description))
		if score > 0 {
			matches = append(matches, match{kb: kb, score: score})
		}
	}
	if len(matches) == 0 {
		logger.Debug("auto routing matched nothing, falling back to default")
		return r.defaultTarget(entries)
	}

	// Stable keeps registry order among equal scores.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	if len(matches) > autoRouteLimit {
		matches = matches[:autoRouteLimit]
	}

	targets := make([]domain.KnowledgeBase, len(matches))
	for i, m := range matches {
		targets[i] = m.kb
		logger.Debug("auto route: %s scored %.2f", m.kb.Name, m.score)
	}
	return targets
}

func (r *Resolver) defaultTarget(entries []domain.KnowledgeBase) []domain.KnowledgeBase {
	name, err := r.registry.DefaultName()
	if err != nil || name == "" {
		return nil
	}
	for _, kb := range entries {
		if kb.Name == name {
			return []domain.KnowledgeBase{kb}
		}
	}
	return nil
}

func (r *Resolver) remember(mode domain.SelectionMode, targets []domain.KnowledgeBase) {
	names := make([]string, len(targets))
	for i, kb := range targets {
		names[i] = kb.Name
	}
	r.scope = domain.ScopeState{LastMode: mode, LastNames: names}
	logger.Debug("search scope: mode=%s targets=%v", mode, names)
}

// filterByName keeps the entries whose name is in the wanted set,
// preserving registry iteration order rather than caller order.
func filterByName(entries []domain.KnowledgeBase, names []string) []domain.KnowledgeBase {
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}
	var targets []domain.KnowledgeBase
	for _, kb := range entries {
		if _, ok := wanted[kb.Name]; ok {
			targets = append(targets, kb)
		}
	}
	return targets
}

// tokenise lower-cases and whitespace-splits text into a token set.
func tokenise(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, f := range strings.Fields(strings.ToLower(s)) {
		tokens[f] = struct{}{}
	}
	return tokens
}

// overlapScore is |query ∩ description| / |query|, zero for an empty query.
func overlapScore(query, description map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	overlap := 0
	for t := range query {
		if _, ok := description[t]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(query))
}
