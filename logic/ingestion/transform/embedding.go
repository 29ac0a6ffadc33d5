package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/embedding/ollama"
	"github.com/cloudwego/eino/components/embedding"
)

// NewEmbedder builds the ollama embedder used for clause vectors, wrapped
// so NaN/Inf dimensions never reach Milvus.
func NewEmbedder(ctx context.Context, baseURL, model string, timeout time.Duration) (embedding.Embedder, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	embedder, err := ollama.NewEmbedder(ctx, &ollama.EmbeddingConfig{
		BaseURL: baseURL,
		Model:   model,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("new ollama embedder: %w", err)
	}
	return NewCleanEmbedder(embedder), nil
}
