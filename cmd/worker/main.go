package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/paperledger/internal/cache"
	"github.com/nikhilbhutani/paperledger/internal/config"
	"github.com/nikhilbhutani/paperledger/internal/database"
	"github.com/nikhilbhutani/paperledger/internal/document"
	"github.com/nikhilbhutani/paperledger/internal/embedding"
	"github.com/nikhilbhutani/paperledger/internal/indexer"
	"github.com/nikhilbhutani/paperledger/internal/jobs"
	"github.com/nikhilbhutani/paperledger/internal/llm"
	"github.com/nikhilbhutani/paperledger/internal/notify"
	"github.com/nikhilbhutani/paperledger/internal/queue"
	"github.com/nikhilbhutani/paperledger/internal/sheets"
	"github.com/nikhilbhutani/paperledger/internal/syncer"
	"github.com/nikhilbhutani/paperledger/internal/vault"
	"github.com/nikhilbhutani/paperledger/internal/vectorstore"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	queueClient := queue.NewClient(cfg.Redis)
	defer queueClient.Close()
	dispatcher := queue.NewDispatcher(queueClient)

	jobStore := jobs.NewStore(db)
	docSvc := document.NewService(db)
	notifySvc := notify.NewService(db, notify.NewDispatcher(db))

	llmGW := llm.NewGateway(cfg.LLM)
	embedSvc := embedding.NewService(llmGW, cfg.LLM.EmbeddingModel)
	vs := vectorstore.NewPgVectorStore(db)

	cryptoKey, err := cfg.Crypto.Key()
	if err != nil {
		slog.Error("invalid encryption key", "error", err)
		os.Exit(1)
	}
	cipher, err := vault.NewCipher(cryptoKey)
	if err != nil {
		slog.Error("failed to init token cipher", "error", err)
		os.Exit(1)
	}
	endpoint := vault.NewGoogleTokenEndpoint(
		cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret, cfg.OAuth.RedirectURL)
	vaultSvc := vault.NewService(vault.NewConnectionStore(db), endpoint, cipher, cfg.OAuth.SafetyMargin)

	indexWorker := indexer.NewWorker(jobStore, docSvc, embedSvc, vs, dispatcher, notifySvc,
		indexer.Config{
			BackoffBase: cfg.Worker.BackoffBase,
			BackoffCap:  cfg.Worker.BackoffCap,
		})

	syncWorker := syncer.NewWorker(jobStore, docSvc, vaultSvc, sheets.NewMapper(),
		sheets.NewGoogleWriter(), dispatcher, notifySvc, cache.NewLease(cache.NewCache(rdb)),
		syncer.Config{
			BackoffBase: cfg.Worker.BackoffBase,
			BackoffCap:  cfg.Worker.BackoffCap,
			LeaseTTL:    cfg.Worker.SyncLeaseTTL,
		})

	recovery := queue.NewRecovery(jobStore, dispatcher, queue.RecoveryConfig{
		VisibilityTimeout: cfg.Worker.VisibilityTimeout,
		Interval:          cfg.Worker.RecoverInterval,
	})
	go recovery.Run(ctx)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()
	registry.Register(queue.TypeIndexDocument, asynq.HandlerFunc(indexWorker.ProcessTask))
	registry.Register(queue.TypeSyncTenant, asynq.HandlerFunc(syncWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", cfg.Worker.Concurrency)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
