package mcp

import (
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search answers questions and fetches raw recall hits.
	Search driving.SearchService

	// Registry reads the knowledge-base registry.
	Registry driving.RegistryService

	// Session reads stored conversation sessions.
	Session driving.SessionService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	// Registry and Session only back the resource surface and are optional
	return nil
}
