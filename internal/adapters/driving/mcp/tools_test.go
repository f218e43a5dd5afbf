package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
)

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns answer with citations", func(t *testing.T) {
		mockSearch := &mockSearchService{
			result: &domain.SearchResult{
				Answer:               "量子纠缠是一种物理现象",
				SessionID:            "工作笔记_20260301_100000",
				SourceKnowledgeBases: []string{"工作笔记"},
				Citations: []domain.Citation{
					{Title: "量子力学讲义", NoteID: "note-1", TypeTag: "笔记"},
				},
			},
		}

		ports := &Ports{Search: mockSearch}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := AskInput{Question: "什么是量子纠缠"}
		_, output, err := server.handleAsk(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, "量子纠缠是一种物理现象", output.Answer)
		assert.Equal(t, "工作笔记_20260301_100000", output.SessionID)
		assert.Equal(t, []string{"工作笔记"}, output.Sources)
		require.Len(t, output.Citations, 1)
		assert.Equal(t, "量子力学讲义", output.Citations[0].Title)
		assert.Equal(t, "note-1", output.Citations[0].NoteID)
		assert.Equal(t, "笔记", output.Citations[0].Type)
	})

	t.Run("rejects unknown mode", func(t *testing.T) {
		ports := &Ports{Search: &mockSearchService{}}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := AskInput{Question: "q", Mode: "wild"}
		_, _, err = server.handleAsk(ctx, nil, input)

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		mockSearch := &mockSearchService{
			err: errors.New("stream aborted"),
		}

		ports := &Ports{Search: mockSearch}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := AskInput{Question: "q"}
		_, _, err = server.handleAsk(ctx, nil, input)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "stream aborted")
	})
}

func TestServer_handleRecall(t *testing.T) {
	ctx := context.Background()

	t.Run("returns scored hits", func(t *testing.T) {
		mockSearch := &mockSearchService{
			items: []domain.RecallItem{
				{
					Title:        "季度规划",
					NoteID:       "note-9",
					Score:        0.9321,
					TypeTag:      "笔记",
					RecallSource: "向量检索",
					Content:      "第一季度的目标是完成迁移",
				},
			},
		}

		ports := &Ports{Search: mockSearch}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := RecallInput{Question: "季度目标", TopK: 5}
		_, output, err := server.handleRecall(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		assert.Equal(t, "季度规划", output.Results[0].Title)
		assert.Equal(t, "note-9", output.Results[0].NoteID)
		assert.Equal(t, 0.9321, output.Results[0].Score)
		assert.Equal(t, "向量检索", output.Results[0].Source)
		assert.Equal(t, "第一季度的目标是完成迁移", output.Results[0].Content)
	})

	t.Run("empty result set", func(t *testing.T) {
		mockSearch := &mockSearchService{}
		ports := &Ports{Search: mockSearch}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := RecallInput{Question: "冷门问题"}
		_, output, err := server.handleRecall(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.Empty(t, output.Results)
	})

	t.Run("returns error on recall failure", func(t *testing.T) {
		mockSearch := &mockSearchService{
			err: errors.New("recall failed"),
		}

		ports := &Ports{Search: mockSearch}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := RecallInput{Question: "q"}
		_, _, err = server.handleRecall(ctx, nil, input)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "recall failed")
	})
}
