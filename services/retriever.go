package services

import (
	"context"
	"fmt"

	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/vector"
	"github.com/qwe111-didna/auto-get-arxiv-papers/models"
)

// QueryEmbedder embeds a single query string.
type QueryEmbedder interface {
	IsAvailable() bool
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorRetriever embeds the query and ranks it against the vector index.
type VectorRetriever struct {
	embedder QueryEmbedder
	index    vector.Index
}

func NewVectorRetriever(embedder QueryEmbedder, index vector.Index) *VectorRetriever {
	return &VectorRetriever{embedder: embedder, index: index}
}

func (r *VectorRetriever) Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievedPaper, error) {
	if !r.embedder.IsAvailable() {
		return nil, ErrUpstreamUnavailable
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	return r.index.Query(ctx, embedding, topK)
}
