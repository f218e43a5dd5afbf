// Package mcp provides an MCP (Model Context Protocol) server adapter for
// the Get笔记 client. It lets AI assistants query configured knowledge
// bases as a tool provider instead of shelling out to the CLI.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")
