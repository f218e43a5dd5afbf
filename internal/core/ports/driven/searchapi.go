package driven

import (
	"context"
	"io"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
)

// SearchAPI talks to the remote knowledge search service.
type SearchAPI interface {
	// OpenStream issues a streaming search call and returns the raw
	// server-sent event body. The caller owns closing it; closing
	// mid-stream is the only way to abandon an in-flight call.
	OpenStream(ctx context.Context, req domain.StreamRequest) (io.ReadCloser, error)

	// Recall issues a raw recall call and returns the scored items in
	// upstream order.
	Recall(ctx context.Context, req domain.RecallRequest) ([]domain.RecallItem, error)
}
