package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// URIScheme is the custom URI scheme for Get笔记 resources.
	uriScheme = "biji://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing knowledge bases.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "knowledge-bases",
		Name:        "knowledge-bases",
		Description: "List of all configured knowledge bases",
		MIMEType:    "application/json",
	}, s.handleKnowledgeBasesResource)

	// Template for a knowledge base's stored sessions.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "knowledge-bases/{name}/sessions",
		Name:        "knowledge-base-sessions",
		Description: "Stored conversation sessions of a specific knowledge base",
		MIMEType:    "application/json",
	}, s.handleSessionsResource)

	// Template for session history.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "sessions/{sessionId}",
		Name:        "session-history",
		Description: "Conversation history of a specific session",
		MIMEType:    "application/json",
	}, s.handleSessionContentResource)
}

// handleKnowledgeBasesResource returns a list of all configured
// knowledge bases. API keys stay out of the payload.
func (s *Server) handleKnowledgeBasesResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Registry == nil {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     "[]",
			}},
		}, nil
	}

	kbs, err := s.ports.Registry.List()
	if err != nil {
		return nil, fmt.Errorf("listing knowledge bases: %w", err)
	}

	defaultName := ""
	if def, err := s.ports.Registry.Default(); err == nil {
		defaultName = def.Name
	}

	// Build simplified knowledge-base list.
	type kbInfo struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Status      string `json:"status"`
		Default     bool   `json:"default"`
	}

	infos := make([]kbInfo, len(kbs))
	for i, kb := range kbs {
		infos[i] = kbInfo{
			Name:        kb.Name,
			Description: kb.Description,
			Status:      string(kb.DescriptionStatus),
			Default:     kb.Name == defaultName,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling knowledge bases: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleSessionsResource returns stored sessions for a specific
// knowledge base.
func (s *Server) handleSessionsResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Session == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract name from URI: biji://knowledge-bases/{name}/sessions
	name := extractKnowledgeBaseName(req.Params.URI)
	if name == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	sessions, err := s.ports.Session.List(name)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	// Build simplified session list.
	type sessionInfo struct {
		ID        string `json:"id"`
		CreatedAt string `json:"created_at"`
		Turns     int    `json:"turns"`
	}

	infos := make([]sessionInfo, len(sessions))
	for i := range sessions {
		infos[i] = sessionInfo{
			ID:        sessions[i].SessionID,
			CreatedAt: sessions[i].CreatedAt,
			Turns:     sessions[i].Turns,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling sessions: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleSessionContentResource returns the history of a specific session.
func (s *Server) handleSessionContentResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Session == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract sessionId from URI: biji://sessions/{sessionId}
	sessionID := extractSessionID(req.Params.URI)
	if sessionID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	session, err := s.ports.Session.Show(sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling session: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractKnowledgeBaseName extracts the knowledge-base name from a URI
// like biji://knowledge-bases/{name}/sessions.
func extractKnowledgeBaseName(uri string) string {
	const prefix = uriScheme + "knowledge-bases/"
	const suffix = "/sessions"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}

	return strings.TrimSuffix(uri, suffix)
}

// extractSessionID extracts the session ID from a URI like
// biji://sessions/{sessionId}.
func extractSessionID(uri string) string {
	const prefix = uriScheme + "sessions/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	return strings.TrimPrefix(uri, prefix)
}
