package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anomot/get-biji-knowledge-skill/internal/adapters/driven/storage/memory"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
)

// --- Mock implementations for search testing ---

// mockSearchAPI implements driven.SearchAPI with scripted stream bodies.
type mockSearchAPI struct {
	mu          sync.Mutex
	streams     []string
	requests    []domain.StreamRequest
	openErr     error
	recallItems []domain.RecallItem
	recallErr   error
	recallReqs  []domain.RecallRequest
}

func (m *mockSearchAPI) OpenStream(_ context.Context, req domain.StreamRequest) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.openErr != nil {
		return nil, m.openErr
	}
	if len(m.streams) == 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}
	body := m.streams[0]
	m.streams = m.streams[1:]
	return io.NopCloser(strings.NewReader(body)), nil
}

func (m *mockSearchAPI) Recall(_ context.Context, req domain.RecallRequest) ([]domain.RecallItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recallReqs = append(m.recallReqs, req)
	if m.recallErr != nil {
		return nil, m.recallErr
	}
	return m.recallItems, nil
}

// sseBody joins data frames into one stream body.
func sseBody(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func answerStream(chunks ...string) string {
	lines := make([]string, 0, len(chunks)+1)
	for _, c := range chunks {
		lines = append(lines, `data: {"msg_type": 1, "data": {"msg": "`+c+`"}}`)
	}
	lines = append(lines, `data: {"msg_type": 3, "data": {}}`)
	return sseBody(lines...)
}

// newTestSearchService wires an orchestrator over in-memory stores with
// pacing and backoff disabled.
func newTestSearchService(t *testing.T, api *mockSearchAPI, kbs ...domain.KnowledgeBase) (*SearchService, *memory.RegistryStore, *memory.SessionStore, *[]time.Duration) {
	t.Helper()
	registry := memory.NewRegistryStore()
	for i, kb := range kbs {
		require.NoError(t, registry.Save(kb))
		if i == 0 {
			require.NoError(t, registry.SetDefaultName(kb.Name))
		}
	}
	sessions := memory.NewSessionStore()
	svc := NewSearchService(api, registry, sessions, NewResolver(registry), domain.SearchDefaults{TopK: 10})
	svc.pacer = rate.NewLimiter(rate.Inf, 1)

	var waits []time.Duration
	svc.wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	svc.now = func() time.Time {
		return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	}
	return svc, registry, sessions, &waits
}

func TestSearchService_Ask_SingleTargetSavesTurn(t *testing.T) {
	api := &mockSearchAPI{streams: []string{answerStream("你好，", "世界")}}
	svc, _, sessions, _ := newTestSearchService(t, api,
		domain.KnowledgeBase{Name: "notes", APIKey: "key", TopicID: "topic"})

	result, err := svc.Ask(context.Background(), "问题", domain.SearchOptions{DeepThink: true})
	require.NoError(t, err)
	assert.Equal(t, "你好，世界", result.Answer)
	assert.Equal(t, []string{"notes"}, result.SourceKnowledgeBases)
	assert.Equal(t, "notes_20260301_100000", result.SessionID)

	saved, err := sessions.Load(result.SessionID)
	require.NoError(t, err)
	require.Len(t, saved.History, 2)
	assert.Equal(t, "问题", saved.History[0].Content)
	assert.Equal(t, "你好，世界", saved.History[1].Content)

	require.Len(t, api.requests, 1)
	assert.Equal(t, "key", api.requests[0].APIKey)
	assert.Equal(t, "topic", api.requests[0].TopicID)
	assert.True(t, api.requests[0].DeepThink)
	assert.Empty(t, api.requests[0].History)
}

func TestSearchService_Ask_ResumesLatestSessionHistory(t *testing.T) {
	api := &mockSearchAPI{streams: []string{answerStream("first"), answerStream("second")}}
	svc, _, _, _ := newTestSearchService(t, api,
		domain.KnowledgeBase{Name: "notes", APIKey: "k", TopicID: "t"})

	_, err := svc.Ask(context.Background(), "q1", domain.SearchOptions{})
	require.NoError(t, err)

	_, err = svc.Ask(context.Background(), "q2", domain.SearchOptions{})
	require.NoError(t, err)

	require.Len(t, api.requests, 2)
	require.Len(t, api.requests[1].History, 2)
	assert.Equal(t, "q1", api.requests[1].History[0].Content)
	assert.Equal(t, domain.RoleAssistant, api.requests[1].History[1].Role)
}

func TestSearchService_Ask_NewSessionDropsHistory(t *testing.T) {
	api := &mockSearchAPI{streams: []string{answerStream("a"), answerStream("b")}}
	svc, _, _, _ := newTestSearchService(t, api,
		domain.KnowledgeBase{Name: "notes", APIKey: "k", TopicID: "t"})

	_, err := svc.Ask(context.Background(), "q1", domain.SearchOptions{})
	require.NoError(t, err)

	_, err = svc.Ask(context.Background(), "q2", domain.SearchOptions{NewSession: true})
	require.NoError(t, err)

	require.Len(t, api.requests, 2)
	assert.Empty(t, api.requests[1].History)
}

func TestSearchService_Ask_OnSessionReportsResume(t *testing.T) {
	api := &mockSearchAPI{streams: []string{answerStream("a"), answerStream("b")}}
	svc, _, _, _ := newTestSearchService(t, api,
		domain.KnowledgeBase{Name: "notes", APIKey: "k", TopicID: "t"})

	type sessionEvent struct {
		id      string
		resumed bool
	}
	var events []sessionEvent
	onSession := func(id string, resumed bool) {
		events = append(events, sessionEvent{id: id, resumed: resumed})
	}

	_, err := svc.Ask(context.Background(), "q1", domain.SearchOptions{OnSession: onSession})
	require.NoError(t, err)

	_, err = svc.Ask(context.Background(), "q2", domain.SearchOptions{OnSession: onSession})
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.False(t, events[0].resumed)
	assert.Equal(t, "notes_20260301_100000", events[0].id)
	assert.True(t, events[1].resumed)
	assert.Equal(t, events[0].id, events[1].id)
}

func TestSearchService_Ask_RateLimitRetriesOnce(t *testing.T) {
	api := &mockSearchAPI{streams: []string{
		sseBody(`data: {"msg_type": 0, "data": {"msg": "每分钟调用超限，请稍后重试"}}`),
		answerStream("recovered"),
	}}
	svc, _, _, waits := newTestSearchService(t, api,
		domain.KnowledgeBase{Name: "notes", APIKey: "k", TopicID: "t"})

	result, err := svc.Ask(context.Background(), "q", domain.SearchOptions{MaxRetries: 1})
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Answer)
	assert.Len(t, api.requests, 2)
	require.Len(t, *waits, 1)
	assert.Equal(t, domain.DefaultRetryDelay, (*waits)[0])
}

func TestSearchService_Ask_RateLimitBudgetSpent(t *testing.T) {
	api := &mockSearchAPI{streams: []string{
		sseBody(`data: {"msg_type": 0, "data": {"msg": "每分钟调用超限"}}`),
	}}
	svc, _, sessions, _ := newTestSearchService(t, api,
		domain.KnowledgeBase{Name: "notes", APIKey: "k", TopicID: "t"})

	result, err := svc.Ask(context.Background(), "q", domain.SearchOptions{MaxRetries: 0})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Len(t, api.requests, 1)

	infos, err := sessions.List("notes")
	require.NoError(t, err)
	assert.Empty(t, infos, "failed turns must not be persisted")
}

func TestSearchService_Ask_HardErrorDiscardsPartialAnswer(t *testing.T) {
	api := &mockSearchAPI{streams: []string{sseBody(
		`data: {"msg_type": 1, "data": {"msg": "partial"}}`,
		`data: {"msg_type": 0, "data": {"msg": "内部错误"}}`,
	)}}
	svc, _, sessions, _ := newTestSearchService(t, api,
		domain.KnowledgeBase{Name: "notes", APIKey: "k", TopicID: "t"})

	result, err := svc.Ask(context.Background(), "q", domain.SearchOptions{MaxRetries: 1})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrStreamAborted)

	infos, err := sessions.List("notes")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestSearchService_Ask_EmptyQuestionRejected(t *testing.T) {
	svc, _, _, _ := newTestSearchService(t, &mockSearchAPI{},
		domain.KnowledgeBase{Name: "notes"})

	_, err := svc.Ask(context.Background(), "   ", domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearchService_Ask_NothingConfigured(t *testing.T) {
	svc, _, _, _ := newTestSearchService(t, &mockSearchAPI{})

	_, err := svc.Ask(context.Background(), "q", domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrNoKnowledgeBase)
}

func TestSearchService_Ask_UnknownExplicitNames(t *testing.T) {
	svc, _, _, _ := newTestSearchService(t, &mockSearchAPI{},
		domain.KnowledgeBase{Name: "notes"})

	_, err := svc.Ask(context.Background(), "q", domain.SearchOptions{ExplicitNames: []string{"ghost"}})
	assert.ErrorIs(t, err, domain.ErrNoKnowledgeBase)
	assert.Contains(t, err.Error(), "ghost")
}

func TestSearchService_Ask_NoAnswerFromSilentStream(t *testing.T) {
	api := &mockSearchAPI{streams: []string{sseBody(
		`data: {"msg_type": 6, "data": {"msg": "检索中"}}`,
		`data: {"msg_type": 3, "data": {}}`,
	)}}
	svc, _, _, _ := newTestSearchService(t, api,
		domain.KnowledgeBase{Name: "notes", APIKey: "k", TopicID: "t"})

	_, err := svc.Ask(context.Background(), "q", domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrNoAnswer)
}

func TestSearchService_Ask_FanOutCombinesSections(t *testing.T) {
	api := &mockSearchAPI{streams: []string{
		sseBody(
			`data: {"msg_type": 1, "data": {"msg": "答案一"}}`,
			`data: {"msg_type": 105, "data": {"ref_list": [{"title": "ref-a", "note_id": "n1"}]}}`,
			`data: {"msg_type": 3, "data": {}}`,
		),
		answerStream("答案二"),
	}}
	svc, _, sessions, _ := newTestSearchService(t, api,
		domain.KnowledgeBase{Name: "alpha", APIKey: "k1", TopicID: "t1"},
		domain.KnowledgeBase{Name: "beta", APIKey: "k2", TopicID: "t2"})

	result, err := svc.Ask(context.Background(), "q", domain.SearchOptions{
		ExplicitNames: []string{"alpha", "beta"},
	})
	require.NoError(t, err)

	assert.Equal(t, "## 来自 [alpha] 的回答\n\n答案一\n\n## 来自 [beta] 的回答\n\n答案二", result.Answer)
	assert.Equal(t, []string{"alpha", "beta"}, result.SourceKnowledgeBases)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "alpha", result.Citations[0].SourceKnowledgeBase)

	// Fresh context per target.
	require.Len(t, api.requests, 2)
	assert.Empty(t, api.requests[0].History)
	assert.Empty(t, api.requests[1].History)

	// One combined turn on the first resolved target's session.
	saved, err := sessions.Load("alpha_20260301_100000")
	require.NoError(t, err)
	require.Len(t, saved.History, 2)
	assert.Contains(t, saved.History[1].Content, "## 来自 [beta] 的回答")
}

func TestSearchService_Ask_FanOutAbsorbsFailures(t *testing.T) {
	api := &mockSearchAPI{streams: []string{
		sseBody(`data: {"msg_type": 0, "data": {"msg": "内部错误"}}`),
		answerStream("surviving"),
	}}
	svc, _, _, _ := newTestSearchService(t, api,
		domain.KnowledgeBase{Name: "alpha", APIKey: "k1", TopicID: "t1"},
		domain.KnowledgeBase{Name: "beta", APIKey: "k2", TopicID: "t2"})

	result, err := svc.Ask(context.Background(), "q", domain.SearchOptions{
		ExplicitNames: []string{"alpha", "beta"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, result.SourceKnowledgeBases)
	assert.Equal(t, "## 来自 [beta] 的回答\n\nsurviving", result.Answer)
}

func TestSearchService_Ask_FanOutAllFailed(t *testing.T) {
	api := &mockSearchAPI{openErr: errors.New("connection refused")}
	svc, _, _, _ := newTestSearchService(t, api,
		domain.KnowledgeBase{Name: "alpha"},
		domain.KnowledgeBase{Name: "beta"})

	result, err := svc.Ask(context.Background(), "q", domain.SearchOptions{
		ExplicitNames: []string{"alpha", "beta"},
	})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrNoAnswer)
}

func TestSearchService_Recall_DefaultKnowledgeBase(t *testing.T) {
	api := &mockSearchAPI{recallItems: []domain.RecallItem{
		{Title: "hit", Score: 0.93, NoteID: "n1"},
	}}
	svc, _, _, _ := newTestSearchService(t, api,
		domain.KnowledgeBase{Name: "notes", APIKey: "k", TopicID: "t"})

	items, err := svc.Recall(context.Background(), "q", domain.RecallOptions{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "hit", items[0].Title)

	require.Len(t, api.recallReqs, 1)
	assert.Equal(t, 10, api.recallReqs[0].TopK)
	assert.Equal(t, "t", api.recallReqs[0].TopicID)
}

func TestSearchService_Recall_WithHistory(t *testing.T) {
	api := &mockSearchAPI{streams: []string{answerStream("a")}}
	svc, _, _, _ := newTestSearchService(t, api,
		domain.KnowledgeBase{Name: "notes", APIKey: "k", TopicID: "t"})

	_, err := svc.Ask(context.Background(), "q1", domain.SearchOptions{})
	require.NoError(t, err)

	_, err = svc.Recall(context.Background(), "q2", domain.RecallOptions{WithHistory: true})
	require.NoError(t, err)

	require.Len(t, api.recallReqs, 1)
	assert.Len(t, api.recallReqs[0].History, 2)
}

func TestSearchService_Recall_UnknownKnowledgeBase(t *testing.T) {
	svc, _, _, _ := newTestSearchService(t, &mockSearchAPI{},
		domain.KnowledgeBase{Name: "notes"})

	_, err := svc.Recall(context.Background(), "q", domain.RecallOptions{KnowledgeBase: "ghost"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
