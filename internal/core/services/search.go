package services

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driven"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driving"
	"github.com/anomot/get-biji-knowledge-skill/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// fanOutPace is the fixed delay between outbound calls. Sequential
// fan-out exists to honour this, so targets are never queried
// concurrently.
const fanOutPace = 500 * time.Millisecond

// streamScanBuffer sizes the line scanner; answer chunks are small but
// citation frames can carry long note excerpts.
const streamScanBuffer = 1024 * 1024

// SearchService orchestrates streaming searches across one or more
// knowledge bases. It resolves targets, decodes streams, applies the
// bounded rate-limit retry, and appends completed turns to the session
// store. It never writes transcript files; that is the caller's side.
type SearchService struct {
	api      driven.SearchAPI
	registry driven.RegistryStore
	sessions driven.SessionStore
	resolver *Resolver
	defaults domain.SearchDefaults

	pacer *rate.Limiter

	// wait is swappable for tests so retry backoff doesn't sleep.
	wait func(ctx context.Context, d time.Duration) error

	// now is swappable for deterministic session ids in tests.
	now func() time.Time
}

// NewSearchService creates a new search orchestrator.
func NewSearchService(
	api driven.SearchAPI,
	registry driven.RegistryStore,
	sessions driven.SessionStore,
	resolver *Resolver,
	defaults domain.SearchDefaults,
) *SearchService {
	return &SearchService{
		api:      api,
		registry: registry,
		sessions: sessions,
		resolver: resolver,
		defaults: defaults,
		pacer:    rate.NewLimiter(rate.Every(fanOutPace), 1),
		wait:     waitFor,
		now:      time.Now,
	}
}

// Ask resolves target knowledge bases, streams the question to each,
// and returns the merged result.
func (s *SearchService) Ask(ctx context.Context, question string, opts domain.SearchOptions) (*domain.SearchResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}

	targets := s.resolver.Resolve(opts.ExplicitNames, opts.Mode, question)
	if len(targets) == 0 {
		if len(opts.ExplicitNames) > 0 {
			return nil, fmt.Errorf("%w: none of %s is registered",
				domain.ErrNoKnowledgeBase, strings.Join(opts.ExplicitNames, ", "))
		}
		return nil, domain.ErrNoKnowledgeBase
	}

	if len(targets) == 1 {
		return s.askOne(ctx, question, targets[0], opts)
	}
	return s.fanOut(ctx, question, targets, opts)
}

// Recall fetches raw scored retrieval hits without AI synthesis.
func (s *SearchService) Recall(ctx context.Context, question string, opts domain.RecallOptions) ([]domain.RecallItem, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}

	kb, err := s.lookup(opts.KnowledgeBase)
	if err != nil {
		return nil, err
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = s.defaults.TopK
	}
	if topK <= 0 {
		topK = domain.DefaultTopK
	}

	req := domain.RecallRequest{
		Question:      question,
		APIKey:        kb.APIKey,
		TopicID:       kb.TopicID,
		TopK:          topK,
		IntentRewrite: opts.IntentRewrite,
		SelectMatrix:  opts.SelectMatrix,
	}
	if opts.WithHistory {
		if latest, err := s.sessions.Latest(kb.Name); err == nil && latest != "" {
			if session, err := s.sessions.Load(latest); err == nil {
				req.History = session.History
			}
		}
	}

	items, err := s.api.Recall(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("recall from %s: %w", kb.Name, err)
	}
	return items, nil
}

// askOne runs the single-knowledge-base path: resume or start a
// session, stream with the conversation history, append the turn.
func (s *SearchService) askOne(ctx context.Context, question string, kb domain.KnowledgeBase, opts domain.SearchOptions) (*domain.SearchResult, error) {
	session, resumed := s.sessionFor(kb.Name, opts.NewSession)
	if opts.OnSession != nil {
		opts.OnSession(session.SessionID, resumed)
	}

	req := domain.StreamRequest{
		Question:  question,
		APIKey:    kb.APIKey,
		TopicID:   kb.TopicID,
		DeepThink: opts.DeepThink,
		Refs:      opts.Refs,
		History:   session.History,
	}
	outcome, err := s.streamTurn(ctx, req, opts)
	if err != nil {
		return nil, err
	}

	session.AppendTurn(question, outcome.Answer)
	if err := s.sessions.Save(*session); err != nil {
		// The answer already streamed to the caller; losing the turn
		// record is the lesser failure.
		logger.Warn("save session %s: %v", session.SessionID, err)
	}

	return &domain.SearchResult{
		Answer:               outcome.Answer,
		Citations:            outcome.Citations,
		Thinking:             outcome.Thinking,
		SessionID:            session.SessionID,
		SourceKnowledgeBases: []string{kb.Name},
	}, nil
}

// fanOut queries every target sequentially with fixed pacing. Each
// target gets a fresh context (no history); failures are absorbed. The
// combined turn is appended to the first resolved target's session.
func (s *SearchService) fanOut(ctx context.Context, question string, targets []domain.KnowledgeBase, opts domain.SearchOptions) (*domain.SearchResult, error) {
	type kbAnswer struct {
		name   string
		answer string
	}

	var (
		answers   []kbAnswer
		citations []domain.Citation
	)
	for _, kb := range targets {
		logger.Section("querying %s", kb.Name)

		req := domain.StreamRequest{
			Question:  question,
			APIKey:    kb.APIKey,
			TopicID:   kb.TopicID,
			DeepThink: opts.DeepThink,
			Refs:      opts.Refs,
		}
		outcome, err := s.streamTurn(ctx, req, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("knowledge base %s produced no answer: %v", kb.Name, err)
			continue
		}

		answers = append(answers, kbAnswer{name: kb.Name, answer: outcome.Answer})
		for _, c := range outcome.Citations {
			c.SourceKnowledgeBase = kb.Name
			citations = append(citations, c)
		}
	}

	if len(answers) == 0 {
		return nil, domain.ErrNoAnswer
	}

	var combined strings.Builder
	sources := make([]string, 0, len(answers))
	for i, a := range answers {
		if i > 0 {
			combined.WriteString("\n\n")
		}
		fmt.Fprintf(&combined, "## 来自 [%s] 的回答\n\n%s", a.name, a.answer)
		sources = append(sources, a.name)
	}

	session, resumed := s.sessionFor(targets[0].Name, opts.NewSession)
	if opts.OnSession != nil {
		opts.OnSession(session.SessionID, resumed)
	}
	session.AppendTurn(question, combined.String())
	if err := s.sessions.Save(*session); err != nil {
		logger.Warn("save session %s: %v", session.SessionID, err)
	}

	return &domain.SearchResult{
		Answer:               combined.String(),
		Citations:            citations,
		SessionID:            session.SessionID,
		SourceKnowledgeBases: sources,
	}, nil
}

// streamTurn runs one streaming call with the bounded rate-limit
// retry. Hard errors abort; rate limiting sleeps for the signalled
// window and retries while budget remains.
func (s *SearchService) streamTurn(ctx context.Context, req domain.StreamRequest, opts domain.SearchOptions) (*domain.StreamOutcome, error) {
	retries := opts.MaxRetries
	if retries < 0 {
		retries = 0
	}

	for attempt := 0; ; attempt++ {
		outcome, err := s.decodeOnce(ctx, req, opts)
		if err != nil {
			return nil, err
		}

		switch outcome.Status {
		case domain.StatusError:
			return nil, fmt.Errorf("%w: %s", domain.ErrStreamAborted, outcome.Message)

		case domain.StatusRateLimited:
			if attempt < retries {
				logger.Warn("rate limited, retrying in %s", outcome.RetryDelay)
				if err := s.wait(ctx, outcome.RetryDelay); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("%w: %s", domain.ErrRateLimited, outcome.Message)
		}

		if strings.TrimSpace(outcome.Answer) == "" {
			return nil, domain.ErrNoAnswer
		}
		return outcome, nil
	}
}

// decodeOnce opens one stream and reduces it. Every outbound call
// passes the pacer first, which is what spaces fan-out and batch
// traffic 500ms apart; a lone call acquires the token instantly.
func (s *SearchService) decodeOnce(ctx context.Context, req domain.StreamRequest, opts domain.SearchOptions) (*domain.StreamOutcome, error) {
	if err := s.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := s.api.OpenStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	defer body.Close()

	acc := NewStreamAccumulator(opts.OnChunk, opts.OnNotice)
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), streamScanBuffer)
	for scanner.Scan() {
		if !acc.Feed(scanner.Text()) {
			break
		}
	}
	if err := scanner.Err(); err != nil && !acc.Halted() {
		if acc.Outcome().Answer == "" {
			return nil, fmt.Errorf("read stream: %w", err)
		}
		// A truncated stream with a partial answer is still worth
		// returning; the server's soft end marker is often missing.
		logger.Warn("stream ended early: %v", err)
	}

	outcome := acc.Outcome()
	return &outcome, nil
}

// sessionFor resumes the latest session for a knowledge base or starts
// a fresh one, reporting which happened. New sessions touch no storage
// until their first turn.
func (s *SearchService) sessionFor(kbName string, fresh bool) (*domain.Session, bool) {
	if !fresh {
		if latest, err := s.sessions.Latest(kbName); err == nil && latest != "" {
			if session, err := s.sessions.Load(latest); err == nil {
				logger.Debug("resuming session %s", session.SessionID)
				return session, true
			}
		}
	}
	session := domain.NewSession(kbName, s.now())
	logger.Debug("starting session %s", session.SessionID)
	return &session, false
}

// lookup finds a knowledge base by name, or the default when the name
// is empty.
func (s *SearchService) lookup(name string) (*domain.KnowledgeBase, error) {
	if name != "" {
		kb, err := s.registry.Get(name)
		if err != nil {
			return nil, fmt.Errorf("knowledge base %q: %w", name, err)
		}
		return kb, nil
	}

	defaultName, err := s.registry.DefaultName()
	if err != nil {
		return nil, fmt.Errorf("read default knowledge base: %w", err)
	}
	if defaultName == "" {
		return nil, domain.ErrNoKnowledgeBase
	}
	kb, err := s.registry.Get(defaultName)
	if err != nil {
		return nil, fmt.Errorf("default knowledge base %q: %w", defaultName, err)
	}
	return kb, nil
}

// waitFor sleeps for d or until the context is cancelled.
func waitFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
