package driving

import (
	"context"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
)

// SearchService provides orchestrated knowledge-base search to external
// actors.
type SearchService interface {
	// Ask resolves target knowledge bases, streams the question to
	// each, and returns the merged result. Resolution and upstream
	// failures surface as sentinel errors the caller renders as
	// messages; Ask never panics and never returns a partial result
	// alongside an error.
	Ask(ctx context.Context, question string, opts domain.SearchOptions) (*domain.SearchResult, error)

	// Recall fetches raw scored retrieval hits without AI synthesis.
	Recall(ctx context.Context, question string, opts domain.RecallOptions) ([]domain.RecallItem, error)
}
