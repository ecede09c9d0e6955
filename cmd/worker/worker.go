package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/ai"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/arxiv"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/config"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/logger"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/queue"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/store"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/vector"
	"github.com/qwe111-didna/auto-get-arxiv-papers/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(context.Background())

	gateway, err := ai.NewGateway(cfg)
	if err != nil {
		log.Fatal("Failed to initialize Gemini gateway:", err)
	}
	defer gateway.Close()

	db := mongoClient.Database(cfg.DBName)
	paperStore := store.NewPaperStore(db)
	topicStore := store.NewTopicStore(db)
	index := vector.NewMongoIndex(db)

	indexingService := services.NewIndexingService(paperStore, index, gateway)
	searchService := services.NewSearchService(arxiv.NewClient(cfg.ArxivAPIURL), paperStore, topicStore, cfg.ArxivMaxResults)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(indexingService, searchService)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIndexPapers, processor.HandleIndexPapers)
	mux.HandleFunc(queue.TaskFetchQuery, processor.HandleFetchQuery)

	logger.Info("Starting worker", "redis", redisOpt.Addr, "concurrency", 5)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
