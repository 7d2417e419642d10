// Package embedding produces fixed-dimension vectors for chunk and query
// text. The model is loaded once per process and shared read-only.
package embedding

import (
	"context"
	"fmt"
)

type Config struct {
	Provider      string
	Dimension     int
	ModelPath     string
	VocabPath     string
	MaxSeqLen     int
	SharedLibPath string
	BaseURL       string
	APIKey        string
	Model         string
}

// Embedder maps text into one shared vector space. Chunk text at ingestion
// time and query text at search time must go through the same instance.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// New selects the engine by provider: a local ONNX encoder by default, or an
// OpenAI-compatible HTTP API.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "", "onnx":
		return NewONNXEmbedder(cfg)
	case "openai":
		return NewOpenAIEmbedder(cfg), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
