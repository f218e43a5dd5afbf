// Package domain defines the core business entities for the biji CLI.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - KnowledgeBase: A named remote corpus (API key + topic id)
//   - Session: A per-knowledge-base conversation history
//   - SearchResult: One orchestrated answer with citations
//   - MessageTag: The closed set of stream frame categories
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
