package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/logger"
)

const (
	TaskIndexPapers = "papers:index"
	TaskFetchQuery  = "papers:fetch"
)

type IndexPapersPayload struct {
	Limit int `json:"limit"`
}

type FetchQueryPayload struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// Task creators
func NewIndexPapersTask(limit int) (*asynq.Task, error) {
	payload, err := json.Marshal(IndexPapersPayload{Limit: limit})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIndexPapers,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("default"),
	), nil
}

func NewFetchQueryTask(query string, maxResults int) (*asynq.Task, error) {
	payload, err := json.Marshal(FetchQueryPayload{Query: query, MaxResults: maxResults})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskFetchQuery,
		payload,
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
		asynq.Queue("default"),
	), nil
}

// Indexer embeds pending papers into the vector index.
type Indexer interface {
	IndexPending(ctx context.Context, limit int) (int, error)
}

// Fetcher pulls papers for a query and stores the new ones.
type Fetcher interface {
	FetchQuery(ctx context.Context, query string, maxResults int) (int, error)
}

// Task handlers
type TaskProcessor struct {
	indexer Indexer
	fetcher Fetcher
}

func NewTaskProcessor(indexer Indexer, fetcher Fetcher) *TaskProcessor {
	return &TaskProcessor{
		indexer: indexer,
		fetcher: fetcher,
	}
}

func (p *TaskProcessor) HandleIndexPapers(ctx context.Context, t *asynq.Task) error {
	var payload IndexPapersPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	indexed, err := p.indexer.IndexPending(ctx, payload.Limit)
	if err != nil {
		return err // Will retry
	}

	logger.Info("Background indexing task completed", "indexed", indexed)
	return nil
}

func (p *TaskProcessor) HandleFetchQuery(ctx context.Context, t *asynq.Task) error {
	var payload FetchQueryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	added, err := p.fetcher.FetchQuery(ctx, payload.Query, payload.MaxResults)
	if err != nil {
		return err
	}

	logger.Info("Background fetch task completed", "query", payload.Query, "added", added)
	return nil
}

// Enqueuer wraps the asynq client for producers.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(redisAddr, password string, db int) *Enqueuer {
	return &Enqueuer{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: password,
			DB:       db,
		}),
	}
}

func (e *Enqueuer) EnqueueIndexPapers(limit int) error {
	task, err := NewIndexPapersTask(limit)
	if err != nil {
		return err
	}
	info, err := e.client.Enqueue(task)
	if err != nil {
		return err
	}
	logger.Debug("Enqueued indexing task", "id", info.ID, "queue", info.Queue)
	return nil
}

func (e *Enqueuer) EnqueueFetchQuery(query string, maxResults int) error {
	task, err := NewFetchQueryTask(query, maxResults)
	if err != nil {
		return err
	}
	info, err := e.client.Enqueue(task)
	if err != nil {
		return err
	}
	logger.Debug("Enqueued fetch task", "id", info.ID, "queue", info.Queue)
	return nil
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}
