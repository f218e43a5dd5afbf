package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
)

// defaultMaxRetries bounds rate-limit retries per ask invocation,
// matching the CLI's configured default.
const defaultMaxRetries = 1

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question       string   `json:"question" jsonschema:"the natural-language question to ask"`
	KnowledgeBases []string `json:"kbs,omitempty" jsonschema:"target knowledge bases by name (default: resolver decides)"`
	Mode           string   `json:"mode,omitempty" jsonschema:"selection mode when no kbs are given: default, auto or all"`
	NewSession     bool     `json:"new_session,omitempty" jsonschema:"start a fresh conversation instead of resuming the latest one"`
	DeepThink      bool     `json:"deep_think,omitempty" jsonschema:"request the API's deep reasoning mode"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer    string           `json:"answer"`
	SessionID string           `json:"session_id"`
	Sources   []string         `json:"sources"`
	Citations []CitationOutput `json:"citations,omitempty"`
}

// CitationOutput represents one reference attached to an answer.
type CitationOutput struct {
	Title  string `json:"title"`
	NoteID string `json:"note_id"`
	Type   string `json:"type,omitempty"`
}

// RecallInput is the input schema for the recall tool.
type RecallInput struct {
	Question      string `json:"question" jsonschema:"the retrieval query"`
	KnowledgeBase string `json:"kb,omitempty" jsonschema:"target knowledge base by name (default: the default base)"`
	TopK          int    `json:"top_k,omitempty" jsonschema:"maximum number of scored hits to return"`
}

// RecallOutput is the output schema for the recall tool.
type RecallOutput struct {
	Results []RecallHitOutput `json:"results"`
	Count   int               `json:"count"`
}

// RecallHitOutput represents a single scored retrieval hit.
type RecallHitOutput struct {
	Title   string  `json:"title"`
	NoteID  string  `json:"note_id"`
	Score   float64 `json:"score"`
	Type    string  `json:"type,omitempty"`
	Source  string  `json:"source,omitempty"`
	Content string  `json:"content,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Ask a question against the configured Get笔记 knowledge bases and get a synthesised answer with citations",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "recall",
		Description: "Fetch raw scored retrieval hits from a knowledge base without AI synthesis",
	}, s.handleRecall)
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	mode := domain.SelectionMode(input.Mode)
	if !mode.IsValid() {
		return nil, AskOutput{}, fmt.Errorf("%w: unknown mode %q (want default, auto or all)", domain.ErrInvalidInput, input.Mode)
	}

	// Citations travel in the structured output, so always request them.
	opts := domain.SearchOptions{
		ExplicitNames: input.KnowledgeBases,
		Mode:          mode,
		NewSession:    input.NewSession,
		DeepThink:     input.DeepThink,
		Refs:          true,
		MaxRetries:    defaultMaxRetries,
	}

	result, err := s.ports.Search.Ask(ctx, input.Question, opts)
	if err != nil {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		Answer:    result.Answer,
		SessionID: result.SessionID,
		Sources:   result.SourceKnowledgeBases,
		Citations: make([]CitationOutput, len(result.Citations)),
	}

	for i := range result.Citations {
		output.Citations[i] = CitationOutput{
			Title:  result.Citations[i].Title,
			NoteID: result.Citations[i].NoteID,
			Type:   result.Citations[i].TypeTag,
		}
	}

	return nil, output, nil
}

// handleRecall handles the recall tool invocation.
func (s *Server) handleRecall(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RecallInput,
) (*mcp.CallToolResult, RecallOutput, error) {
	// TopK <= 0 falls through to the service's configured default.
	opts := domain.RecallOptions{
		KnowledgeBase: input.KnowledgeBase,
		TopK:          input.TopK,
	}

	items, err := s.ports.Search.Recall(ctx, input.Question, opts)
	if err != nil {
		return nil, RecallOutput{}, err
	}

	output := RecallOutput{
		Results: make([]RecallHitOutput, len(items)),
		Count:   len(items),
	}

	for i := range items {
		output.Results[i] = RecallHitOutput{
			Title:   items[i].Title,
			NoteID:  items[i].NoteID,
			Score:   items[i].Score,
			Type:    items[i].TypeTag,
			Source:  items[i].RecallSource,
			Content: items[i].Content,
		}
	}

	return nil, output, nil
}
