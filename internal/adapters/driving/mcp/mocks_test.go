package mcp

import (
	"context"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	result *domain.SearchResult
	items  []domain.RecallItem
	err    error
}

func (m *mockSearchService) Ask(
	_ context.Context,
	_ string,
	_ domain.SearchOptions,
) (*domain.SearchResult, error) {
	return m.result, m.err
}

func (m *mockSearchService) Recall(
	_ context.Context,
	_ string,
	_ domain.RecallOptions,
) ([]domain.RecallItem, error) {
	return m.items, m.err
}

// mockRegistryService is a mock implementation of driving.RegistryService.
type mockRegistryService struct {
	kbs      []domain.KnowledgeBase
	kb       *domain.KnowledgeBase
	def      *domain.KnowledgeBase
	settings domain.GlobalSettings
	err      error
}

func (m *mockRegistryService) Add(_ domain.KnowledgeBase, _ bool) error {
	return m.err
}

func (m *mockRegistryService) Upsert(_ domain.KnowledgeBase, _ bool) error {
	return m.err
}

func (m *mockRegistryService) Remove(_ string) error {
	return m.err
}

func (m *mockRegistryService) Get(_ string) (*domain.KnowledgeBase, error) {
	return m.kb, m.err
}

func (m *mockRegistryService) List() ([]domain.KnowledgeBase, error) {
	return m.kbs, m.err
}

func (m *mockRegistryService) Default() (*domain.KnowledgeBase, error) {
	if m.def == nil {
		return nil, domain.ErrNoKnowledgeBase
	}
	return m.def, m.err
}

func (m *mockRegistryService) SetDefault(_ string) error {
	return m.err
}

func (m *mockRegistryService) SetDescription(_ string, _ domain.DescriptionStatus, _ string) error {
	return m.err
}

func (m *mockRegistryService) Settings() (domain.GlobalSettings, error) {
	return m.settings, m.err
}

func (m *mockRegistryService) SetRefs(_ bool) error {
	return m.err
}

func (m *mockRegistryService) SetOutputDir(_ string) error {
	return m.err
}

// mockSessionService is a mock implementation of driving.SessionService.
type mockSessionService struct {
	infos   []domain.SessionInfo
	session *domain.Session
	err     error
}

func (m *mockSessionService) List(_ string) ([]domain.SessionInfo, error) {
	return m.infos, m.err
}

func (m *mockSessionService) Show(_ string) (*domain.Session, error) {
	return m.session, m.err
}

func (m *mockSessionService) Clear(_ string) error {
	return m.err
}

func (m *mockSessionService) Delete(_ string) error {
	return m.err
}
