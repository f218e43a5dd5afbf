package driving

import (
	"context"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
)

// MetadataService derives knowledge-base descriptions for the
// resolver's routing mode by interrogating the corpus itself.
type MetadataService interface {
	// Sync runs the introspective query rounds against one knowledge
	// base, integrates the answers into a description, and (unless
	// dry-running) stores it with status ready. Failed generation
	// marks the entry failed before returning the error.
	Sync(ctx context.Context, name string, opts domain.SyncOptions) (*domain.SyncOutcome, error)
}
