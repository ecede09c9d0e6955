package ai

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	genai "github.com/google/generative-ai-go/genai"
)

// Embed returns the embedding vector for a single text.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if !g.IsAvailable() {
		return nil, ErrUnavailable
	}

	if err := g.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		em := g.client.EmbeddingModel(g.embedModel)
		resp, err := em.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil {
			return nil, errors.New("empty embedding response")
		}
		g.tokenCounter.RecordUsage(len(text)/4, 1)
		return resp.Embedding.Values, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrUnavailable
		}
		return nil, err
	}

	return result.([]float32), nil
}

// EmbedBatch embeds texts in a single batch call, preserving input order.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	tracer := otel.Tracer("gemini-gateway")
	ctx, span := tracer.Start(ctx, "gemini.embed_batch")
	defer span.End()

	if !g.IsAvailable() {
		return nil, ErrUnavailable
	}
	if len(texts) == 0 {
		return nil, nil
	}

	span.SetAttributes(attribute.Int("gemini.batch_size", len(texts)))

	if err := g.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		em := g.client.EmbeddingModel(g.embedModel)
		batch := em.NewBatch()
		chars := 0
		for _, t := range texts {
			batch.AddContent(genai.Text(t))
			chars += len(t)
		}

		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != len(texts) {
			return nil, errors.New("embedding count does not match input count")
		}

		vectors := make([][]float32, len(resp.Embeddings))
		for i, e := range resp.Embeddings {
			vectors[i] = e.Values
		}
		g.tokenCounter.RecordUsage(chars/4, 1)
		return vectors, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
			return nil, ErrUnavailable
		}
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, err
	}

	return result.([][]float32), nil
}
