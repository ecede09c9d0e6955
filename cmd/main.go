package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/ai"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/arxiv"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/config"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/logger"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/queue"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/store"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/telemetry"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/vector"
	"github.com/qwe111-didna/auto-get-arxiv-papers/middleware"
	"github.com/qwe111-didna/auto-get-arxiv-papers/routes"
	"github.com/qwe111-didna/auto-get-arxiv-papers/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("arxiv-papers-api", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			defer shutdown()
		}
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	gateway, err := ai.NewGateway(cfg)
	if err != nil {
		log.Fatal("Failed to initialize Gemini gateway:", err)
	}
	defer gateway.Close()

	db := mongoClient.Database(cfg.DBName)
	paperStore := store.NewPaperStore(db)
	topicStore := store.NewTopicStore(db)
	index := vector.NewMongoIndex(db)

	arxivClient := arxiv.NewClient(cfg.ArxivAPIURL)
	searchService := services.NewSearchService(arxivClient, paperStore, topicStore, cfg.ArxivMaxResults)
	indexingService := services.NewIndexingService(paperStore, index, gateway)
	conversations := services.NewConversationManager(cfg.MaxHistoryMessages)
	retriever := services.NewVectorRetriever(gateway, index)
	answerService := services.NewAnswerService(gateway, retriever, conversations, cfg.DefaultTopK, cfg.ContextMessages, cfg.RerankCandidateMult)
	translationService := services.NewTranslationService(gateway)
	exportService := services.NewExportService(paperStore)
	digestSender := services.NewSMTPDigestSender(cfg)

	enqueuer := queue.NewEnqueuer(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer enqueuer.Close()

	scheduler := setupScheduler(cfg, searchService, paperStore, digestSender, enqueuer)
	go scheduler.Start()
	defer scheduler.Stop()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	if cfg.TracingEnabled {
		router.Use(otelgin.Middleware("arxiv-papers-api"))
	}
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Requested-With"}
	router.Use(cors.New(corsConfig))

	routes.SetupPaperRoutes(router, paperStore, index, exportService)
	routes.SetupTopicRoutes(router, topicStore, enqueuer)
	routes.SetupArxivRoutes(router, searchService, indexingService, enqueuer)
	routes.SetupQARoutes(router, answerService, conversations)
	routes.SetupTranslateRoutes(router, translationService)
	routes.SetupSystemRoutes(router, gateway, paperStore, topicStore, index, scheduler, conversations)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}

// setupScheduler registers the standing jobs: the daily topic fetch, the
// daily digest, and the periodic index sweep.
func setupScheduler(cfg *config.Config, search *services.SearchService, papers *store.PaperStore, digest services.DigestSender, enqueuer *queue.Enqueuer) *services.Scheduler {
	scheduler := services.NewScheduler(nil)

	mustRegister := func(err error) {
		if err != nil {
			log.Fatal("Failed to register scheduled task:", err)
		}
	}

	mustRegister(scheduler.AddDailyTask("fetch-topics", cfg.FetchHour, cfg.FetchMinute, func(ctx context.Context) error {
		results, err := search.FetchAllTopics(ctx)
		if err != nil {
			return err
		}
		total := 0
		for _, n := range results {
			total += n
		}
		if total > 0 {
			if err := enqueuer.EnqueueIndexPapers(0); err != nil {
				logger.Warn("Failed to enqueue indexing after fetch", "error", err)
			}
		}
		return nil
	}))

	mustRegister(scheduler.AddDailyTask("daily-digest", cfg.DigestHour, cfg.DigestMinute, func(ctx context.Context) error {
		since := time.Now().Add(-24 * time.Hour)
		recent, err := papers.PapersSince(ctx, since)
		if err != nil {
			return err
		}
		return digest.SendDigest(recent)
	}))

	mustRegister(scheduler.AddIntervalTask("index-sweep", time.Duration(cfg.IndexSweepMinutes)*time.Minute, func(ctx context.Context) error {
		return enqueuer.EnqueueIndexPapers(0)
	}))

	return scheduler
}
