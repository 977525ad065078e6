package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/paperledger/internal/api/handlers"
	"github.com/nikhilbhutani/paperledger/internal/api/middleware"
	"github.com/nikhilbhutani/paperledger/internal/audit"
	"github.com/nikhilbhutani/paperledger/internal/auth"
	"github.com/nikhilbhutani/paperledger/internal/cache"
	"github.com/nikhilbhutani/paperledger/internal/categorize"
	"github.com/nikhilbhutani/paperledger/internal/config"
	"github.com/nikhilbhutani/paperledger/internal/document"
	"github.com/nikhilbhutani/paperledger/internal/embedding"
	"github.com/nikhilbhutani/paperledger/internal/jobs"
	"github.com/nikhilbhutani/paperledger/internal/llm"
	"github.com/nikhilbhutani/paperledger/internal/notify"
	"github.com/nikhilbhutani/paperledger/internal/ocr"
	"github.com/nikhilbhutani/paperledger/internal/parser"
	"github.com/nikhilbhutani/paperledger/internal/pipeline"
	"github.com/nikhilbhutani/paperledger/internal/queue"
	"github.com/nikhilbhutani/paperledger/internal/rag"
	"github.com/nikhilbhutani/paperledger/internal/sheets"
	"github.com/nikhilbhutani/paperledger/internal/storage"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
	"github.com/nikhilbhutani/paperledger/internal/vault"
	"github.com/nikhilbhutani/paperledger/internal/vectorstore"
)

type Router struct {
	mux      *chi.Mux
	db       *pgxpool.Pool
	redis    *redis.Client
	cfg      *config.Config
	resolver *tenant.Resolver
	jwt      *auth.JWTMiddleware
	llmGW    llm.Gateway
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	resolver := tenant.NewResolver(db)
	return &Router{
		mux:      chi.NewRouter(),
		db:       db,
		redis:    rdb,
		cfg:      cfg,
		resolver: resolver,
		jwt:      auth.NewJWTMiddleware(cfg.Auth.JWTSecret, resolver),
		llmGW:    llm.NewGateway(cfg.LLM),
	}
}

func (rt *Router) Setup() (http.Handler, error) {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Shared infrastructure
	cacheSvc := cache.NewCache(rt.redis)
	auditSvc := audit.NewService(rt.db)
	queueClient := queue.NewClient(rt.cfg.Redis)
	dispatcher := queue.NewDispatcher(queueClient)
	notifySvc := notify.NewService(rt.db, notify.NewDispatcher(rt.db))

	// Credential vault
	cryptoKey, err := rt.cfg.Crypto.Key()
	if err != nil {
		return nil, err
	}
	cipher, err := vault.NewCipher(cryptoKey)
	if err != nil {
		return nil, fmt.Errorf("init token cipher: %w", err)
	}
	endpoint := vault.NewGoogleTokenEndpoint(
		rt.cfg.OAuth.GoogleClientID, rt.cfg.OAuth.GoogleClientSecret, rt.cfg.OAuth.RedirectURL)
	vaultSvc := vault.NewService(vault.NewConnectionStore(rt.db), endpoint, cipher, rt.cfg.OAuth.SafetyMargin)

	// Ingestion pipeline
	extractor, err := ocr.NewExtractor(rt.cfg.Pipeline, rt.llmGW)
	if err != nil {
		return nil, fmt.Errorf("init OCR extractor: %w", err)
	}
	objectStore := storage.NewSupabaseStorage(rt.cfg.Storage.SupabaseURL, rt.cfg.Storage.SupabaseKey)
	images := storage.NewImageStore(objectStore, rt.cfg.Storage.Bucket)
	docSvc := document.NewService(rt.db)
	jobStore := jobs.NewStore(rt.db)
	parseSvc := parser.NewService(rt.llmGW, rt.cfg.Pipeline.ParseModel)
	ingest := pipeline.New(extractor, parseSvc, categorize.New(rt.cfg.Pipeline.CategorizeThreshold), docSvc, jobStore,
		dispatcher, vaultSvc, images, rt.resolver, pipeline.Config{
			ExtractTimeout: rt.cfg.Pipeline.ExtractTimeout,
			MaxJobAttempts: rt.cfg.Worker.MaxAttempts,
		})

	// Retrieval
	vs := vectorstore.NewPgVectorStore(rt.db)
	embedSvc := embedding.NewService(rt.llmGW, rt.cfg.LLM.EmbeddingModel)
	orchestrator := rag.NewOrchestrator(vs, embedSvc, rt.llmGW, rt.cfg.LLM.DefaultModel)

	sheetWriter := sheets.NewGoogleWriter()

	docH := handlers.NewDocumentHandler(ingest, docSvc, jobStore, auditSvc)
	chatH := handlers.NewChatHandler(orchestrator, auditSvc)
	sheetH := handlers.NewSheetHandler(vaultSvc, sheetWriter, cacheSvc, auditSvc)
	jobH := handlers.NewJobHandler(jobStore, dispatcher, auditSvc)
	webhookH := handlers.NewWebhookHandler(notifySvc)
	adminH := handlers.NewAdminHandler(auditSvc)

	// The OAuth callback is hit by the provider's redirect, which carries
	// no bearer token; the tenant is recovered from the state parameter.
	r.Get("/api/v1/sheets/oauth/callback", sheetH.Callback)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", docH.Upload)
			r.Get("/", docH.List)
			r.Get("/{id}", docH.Get)
			r.Get("/{id}/status", docH.Status)
		})

		r.Post("/chat", chatH.Chat)
		r.Post("/search", chatH.Search)

		r.Route("/sheets", func(r chi.Router) {
			r.Get("/status", sheetH.Status)
			r.Get("/connect", sheetH.Connect)
			r.Post("/disconnect", sheetH.Disconnect)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/dead", jobH.Dead)
			r.Post("/{id}/retry", jobH.Retry)
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/", webhookH.Create)
			r.Get("/", webhookH.List)
			r.Delete("/{id}", webhookH.Delete)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/usage", adminH.Usage)
			r.Get("/audit", adminH.AuditLogs)
		})
	})

	return r, nil
}
