package services

import (
	"context"
	"fmt"

	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/logger"
	"github.com/qwe111-didna/auto-get-arxiv-papers/models"
)

// embedBatchSize is the Gemini batch embedding request limit.
const embedBatchSize = 100

// Embedder produces embedding vectors for texts.
type Embedder interface {
	IsAvailable() bool
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// PaperBacklog is the slice of the paper store the indexer needs.
type PaperBacklog interface {
	UnindexedPapers(ctx context.Context, limit int64) ([]models.Paper, error)
	MarkIndexed(ctx context.Context, ids []string) error
	ClearIndexed(ctx context.Context) error
}

// ChunkWriter is the write side of the vector index.
type ChunkWriter interface {
	Upsert(ctx context.Context, chunks []models.PaperChunk) error
	Reset(ctx context.Context) error
}

// IndexingService embeds stored papers into the vector index. A paper is
// marked indexed only after its chunk has been written, so a crash between
// the two steps re-indexes the paper rather than losing it.
type IndexingService struct {
	papers   PaperBacklog
	index    ChunkWriter
	embedder Embedder
}

func NewIndexingService(papers PaperBacklog, index ChunkWriter, embedder Embedder) *IndexingService {
	return &IndexingService{
		papers:   papers,
		index:    index,
		embedder: embedder,
	}
}

// IndexPending embeds up to limit unindexed papers and returns how many
// were indexed. limit <= 0 means no cap.
func (s *IndexingService) IndexPending(ctx context.Context, limit int) (int, error) {
	if !s.embedder.IsAvailable() {
		return 0, ErrUpstreamUnavailable
	}

	papers, err := s.papers.UnindexedPapers(ctx, int64(limit))
	if err != nil {
		return 0, fmt.Errorf("failed to load unindexed papers: %w", err)
	}
	if len(papers) == 0 {
		return 0, nil
	}

	indexed := 0
	for start := 0; start < len(papers); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(papers) {
			end = len(papers)
		}
		batch := papers[start:end]

		n, err := s.indexBatch(ctx, batch)
		indexed += n
		if err != nil {
			return indexed, err
		}
	}

	logger.Info("Indexing pass completed", "indexed", indexed)
	return indexed, nil
}

func (s *IndexingService) indexBatch(ctx context.Context, papers []models.Paper) (int, error) {
	texts := make([]string, len(papers))
	for i, p := range papers {
		texts[i] = EmbeddingText(p)
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding batch failed: %w", err)
	}
	if len(vectors) != len(papers) {
		return 0, fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(papers), len(vectors))
	}

	chunks := make([]models.PaperChunk, len(papers))
	ids := make([]string, len(papers))
	for i, p := range papers {
		chunks[i] = models.PaperChunk{
			PaperID:    p.ID,
			Vector:     vectors[i],
			Text:       texts[i],
			Title:      p.Title,
			Categories: p.Categories,
		}
		ids[i] = p.ID
	}

	if err := s.index.Upsert(ctx, chunks); err != nil {
		return 0, fmt.Errorf("chunk upsert failed: %w", err)
	}

	if err := s.papers.MarkIndexed(ctx, ids); err != nil {
		// Chunks are written; the next pass re-embeds these papers and
		// overwrites the same chunk ids.
		return 0, fmt.Errorf("failed to mark papers indexed: %w", err)
	}

	return len(papers), nil
}

// Reset drops all chunks and clears the indexed flags, starting a new
// index generation. Flags are cleared only after the chunks are gone so
// a failure in between leaves papers queued for re-indexing, not orphaned.
func (s *IndexingService) Reset(ctx context.Context) error {
	if err := s.index.Reset(ctx); err != nil {
		return fmt.Errorf("failed to drop index chunks: %w", err)
	}
	if err := s.papers.ClearIndexed(ctx); err != nil {
		return fmt.Errorf("failed to clear indexed flags: %w", err)
	}
	logger.Info("Vector index reset")
	return nil
}

// EmbeddingText is the canonical text embedded for a paper.
func EmbeddingText(p models.Paper) string {
	return p.Title + "\n\n" + p.Summary
}
