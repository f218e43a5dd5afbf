package cli

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/anomot/get-biji-knowledge-skill/internal/adapters/driven/storage/memory"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/services"
)

// defaultStubAnswer is what the stub API answers when a test scripts
// nothing. Long enough that description probes accept it.
const defaultStubAnswer = "本库收录团队的工作笔记、会议记录与项目复盘总结，覆盖架构决策和上线流程。"

// Stubs and stores wired by setupTestServices, reachable so individual
// tests can script responses or seed fixtures.
var (
	stubAPI      *stubSearchAPI
	stubPlans    *stubPlanBook
	testRegistry *memory.RegistryStore
	testSessions *memory.SessionStore
)

// stubSearchAPI implements driven.SearchAPI with scripted responses.
// An exhausted stream script falls back to a canned answer so
// multi-call flows keep working.
type stubSearchAPI struct {
	mu          sync.Mutex
	streams     []string
	requests    []domain.StreamRequest
	openErr     error
	recallItems []domain.RecallItem
	recallErr   error
}

func (m *stubSearchAPI) OpenStream(_ context.Context, req domain.StreamRequest) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.openErr != nil {
		return nil, m.openErr
	}
	if len(m.streams) == 0 {
		return io.NopCloser(strings.NewReader(answerStream(defaultStubAnswer))), nil
	}
	body := m.streams[0]
	m.streams = m.streams[1:]
	return io.NopCloser(strings.NewReader(body)), nil
}

func (m *stubSearchAPI) Recall(_ context.Context, _ domain.RecallRequest) ([]domain.RecallItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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

// stubProbeStore serves a fixed probe prompt for every name.
type stubProbeStore struct{}

func (stubProbeStore) Load(string) (string, error) {
	return "请概述这个知识库的核心主题和关键词", nil
}

// stubPlanBook records checklist calls without touching disk.
type stubPlanBook struct {
	mu        sync.Mutex
	createErr error
	path      string
	recorded  []domain.PlanTask
}

func (b *stubPlanBook) Create(_ string, _ []domain.PlanTask) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return "", b.createErr
	}
	b.path = "search_plan.md"
	return b.path, nil
}

func (b *stubPlanBook) Record(task domain.PlanTask, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recorded = append(b.recorded, task)
	return nil
}

// setupTestServices wires the commands to real services over in-memory
// stores and the scripted API stub, pre-seeded with one default
// knowledge base. The returned cleanup restores whatever was installed
// before.
func setupTestServices() func() {
	prev := Services{
		Search:         searchService,
		Registry:       registryService,
		Session:        sessionService,
		Metadata:       metadataService,
		Plan:           planService,
		Defaults:       searchDefaults,
		NewTranscript:  newTranscript,
		RegistryPath:   registryPath,
		ReloadRegistry: reloadRegistry,
	}

	stubAPI = &stubSearchAPI{}
	stubPlans = &stubPlanBook{}

	testRegistry = memory.NewRegistryStore()
	_ = testRegistry.Save(domain.KnowledgeBase{
		Name:              "工作笔记",
		APIKey:            "test-key-1234567890",
		TopicID:           "topic-1",
		Description:       "团队的工作笔记、会议记录与项目复盘",
		DescriptionStatus: domain.DescriptionReady,
	})
	_ = testRegistry.SetDefaultName("工作笔记")
	testSessions = memory.NewSessionStore()

	defaults := domain.SearchDefaults{DeepThink: true, MaxRetries: 1, TopK: 10}
	search := services.NewSearchService(stubAPI, testRegistry, testSessions, services.NewResolver(testRegistry), defaults)
	registry := services.NewRegistryService(testRegistry)

	SetServices(Services{
		Search:   search,
		Registry: registry,
		Session:  services.NewSessionService(testSessions),
		Metadata: services.NewMetadataService(search, registry, stubProbeStore{}),
		Plan:     services.NewPlanService(search, testRegistry, stubPlans),
		Defaults: defaults,
	})

	return func() {
		SetServices(prev)
	}
}
