package services

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/arxiv"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/logger"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/store"
	"github.com/qwe111-didna/auto-get-arxiv-papers/models"
)

// SearchService fetches papers from arXiv and stores the new ones.
type SearchService struct {
	client     *arxiv.Client
	papers     *store.PaperStore
	topics     *store.TopicStore
	maxResults int
}

func NewSearchService(client *arxiv.Client, papers *store.PaperStore, topics *store.TopicStore, maxResults int) *SearchService {
	if maxResults <= 0 {
		maxResults = 50
	}
	return &SearchService{
		client:     client,
		papers:     papers,
		topics:     topics,
		maxResults: maxResults,
	}
}

// FetchQuery pulls papers for one query and stores them, returning the
// number of papers not previously seen. A failed fetch contributes zero
// papers; only store failures surface as errors.
func (s *SearchService) FetchQuery(ctx context.Context, query string, maxResults int) (int, error) {
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	return s.savePapers(ctx, s.client.Search(ctx, query, maxResults))
}

// FetchAllTopics fetches every saved topic concurrently. A failing topic
// contributes zero papers; other topics proceed. The returned map is
// topic name to new paper count.
func (s *SearchService) FetchAllTopics(ctx context.Context) (map[string]int, error) {
	topics, err := s.topics.ListTopics(ctx)
	if err != nil {
		return nil, err
	}
	if len(topics) == 0 {
		logger.Warn("No topics configured, nothing to fetch")
		return map[string]int{}, nil
	}

	var mu sync.Mutex
	results := make(map[string]int, len(topics))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, topic := range topics {
		topic := topic
		g.Go(func() error {
			papers := s.client.Search(gctx, topic.Query, s.maxResults)

			// One topic failing to save must not abort the rest.
			added, err := s.savePapers(gctx, papers)
			if err != nil {
				logger.Error("Saving fetched papers failed", "topic", topic.Name, "error", err)
				mu.Lock()
				results[topic.Name] = 0
				mu.Unlock()
				return nil
			}

			if err := s.topics.TouchTopic(gctx, topic.ID); err != nil {
				logger.Warn("Failed to update topic fetch time", "topic", topic.Name, "error", err)
			}

			mu.Lock()
			results[topic.Name] = added
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	total := 0
	for _, n := range results {
		total += n
	}
	logger.Info("Topic fetch completed", "topics", len(topics), "new_papers", total)
	return results, nil
}

func (s *SearchService) savePapers(ctx context.Context, papers []models.Paper) (int, error) {
	added := 0
	for _, paper := range papers {
		inserted, err := s.papers.AddPaper(ctx, paper)
		if err != nil {
			return added, err
		}
		if inserted {
			added++
		}
	}
	return added, nil
}
