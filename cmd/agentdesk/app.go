package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mtlprog/agentdesk/internal/billing"
	"github.com/mtlprog/agentdesk/internal/cache"
	"github.com/mtlprog/agentdesk/internal/config"
	"github.com/mtlprog/agentdesk/internal/database"
	"github.com/mtlprog/agentdesk/internal/handler"
	"github.com/mtlprog/agentdesk/internal/ingest"
	"github.com/mtlprog/agentdesk/internal/integrations/github"
	"github.com/mtlprog/agentdesk/internal/integrations/linear"
	"github.com/mtlprog/agentdesk/internal/llm"
	"github.com/mtlprog/agentdesk/internal/mailer"
	"github.com/mtlprog/agentdesk/internal/middleware"
	"github.com/mtlprog/agentdesk/internal/queue"
	"github.com/mtlprog/agentdesk/internal/realtime"
	"github.com/mtlprog/agentdesk/internal/repository"
	"github.com/mtlprog/agentdesk/internal/service"
	"github.com/urfave/cli/v2"
)

const outboundTimeout = 30 * time.Second

// repositories groups the data access layer shared by all commands.
type repositories struct {
	users         *repository.UserRepository
	agents        *repository.AgentRepository
	conversations *repository.ConversationRepository
	messages      *repository.MessageRepository
	knowledge     *repository.KnowledgeRepository
	billing       *repository.BillingRepository
	invites       *repository.InviteRepository
	integrations  *repository.IntegrationRepository
	usage         *repository.UsageRepository
}

func openDatabase(ctx context.Context, cfg config.Config) (*database.DB, error) {
	db, err := database.New(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.RunMigrations(ctx, db.Pool()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func newRepositories(db *database.DB) *repositories {
	pool := db.Pool()
	return &repositories{
		users:         repository.NewUserRepository(pool),
		agents:        repository.NewAgentRepository(pool),
		conversations: repository.NewConversationRepository(pool),
		messages:      repository.NewMessageRepository(pool),
		knowledge:     repository.NewKnowledgeRepository(pool),
		billing:       repository.NewBillingRepository(pool),
		invites:       repository.NewInviteRepository(pool),
		integrations:  repository.NewIntegrationRepository(pool),
		usage:         repository.NewUsageRepository(pool),
	}
}

// openRedis returns nil without a configured URL.
func openRedis(ctx context.Context, cfg config.Config) (*cache.Redis, error) {
	if !cfg.QueueEnabled() {
		return nil, nil
	}
	rdb, err := cache.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// newEntitlements keeps the cache interface nil when Redis is absent.
func newEntitlements(repos *repositories, rdb *cache.Redis) *service.Entitlements {
	var entCache service.EntitlementCache
	if rdb != nil {
		entCache = rdb
	}
	return service.NewEntitlements(repos.billing, entCache)
}

func newProvider(cfg config.Config) (*llm.OpenAI, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	embeddingModel := cfg.EmbeddingModel
	if !cfg.EmbeddingsEnabled() {
		embeddingModel = ""
	}
	return llm.NewOpenAI(llm.Config{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		Model:          cfg.Model,
		EmbeddingModel: embeddingModel,
	})
}

func newPipeline(cfg config.Config, db *database.DB, repos *repositories, provider *llm.OpenAI) (*ingest.Pipeline, error) {
	httpClient := &http.Client{Timeout: outboundTimeout}
	scraper := ingest.NewScraper(cfg.FirecrawlAPIKey, cfg.FirecrawlBaseURL, httpClient)

	opts := []ingest.Option{
		ingest.WithChunkSize(cfg.ChunkSize),
		ingest.WithPoolSize(cfg.IngestWorkers),
	}
	if cfg.EmbeddingsEnabled() {
		opts = append(opts, ingest.WithEmbedder(provider))
	}

	pipeline, err := ingest.NewPipeline(db.Pool(), repos.knowledge, scraper, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}
	return pipeline, nil
}

func runServe(c *cli.Context) error {
	ctx := c.Context
	cfg := configFromCLI(c)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	repos := newRepositories(db)

	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		return err
	}
	var limiter service.RateLimiter
	if rdb != nil {
		defer rdb.Close()
		limiter = rdb
	}
	entitlements := newEntitlements(repos, rdb)

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	pipeline, err := newPipeline(cfg, db, repos, provider)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	// Without Redis, knowledge files are processed inside this process.
	var enqueuer service.Enqueuer
	if cfg.QueueEnabled() {
		client, err := queue.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		enqueuer = client
	} else {
		inline, err := queue.NewInlineEnqueuer(cfg.IngestWorkers, pipeline)
		if err != nil {
			return err
		}
		defer inline.Close()
		enqueuer = inline
		slog.Warn("redis not configured, processing knowledge in-process")
	}

	var gateway service.PaymentGateway
	if cfg.BillingEnabled() {
		gateway = billing.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil)
	} else {
		slog.Warn("stripe not configured, billing endpoints disabled")
	}

	var mail service.Mailer
	if cfg.EmailEnabled() {
		ses, err := mailer.NewSES(ctx, cfg.AWSRegion, cfg.EmailFrom)
		if err != nil {
			return fmt.Errorf("failed to configure ses: %w", err)
		}
		mail = ses
	} else {
		slog.Warn("ses not configured, invites are created without email")
	}

	var relay handler.RealtimeRelay
	if cfg.RealtimeEnabled() {
		relay = realtime.NewRelay(cfg.RealtimeURL, cfg.OpenAIAPIKey)
	}

	httpClient := &http.Client{Timeout: outboundTimeout}

	h := handler.New(handler.Dependencies{
		Pool:  db.Pool(),
		Users: repos.users,
		Agents: service.NewAgentService(
			db.Pool(), repos.agents, repos.users, entitlements, cfg.Model,
		),
		Chat: service.NewChatService(
			repos.agents, repos.conversations, repos.messages, repos.knowledge,
			entitlements, limiter, provider, cfg.ChatRateLimit,
		),
		Knowledge: service.NewKnowledgeService(
			db.Pool(), repos.knowledge, repos.agents, repos.users, entitlements, enqueuer,
		),
		Billing: service.NewBillingService(
			repos.billing, repos.users, entitlements, gateway, cfg.AppURL,
		),
		Integrations: service.NewIntegrationService(
			repos.integrations,
			github.NewClient("", httpClient),
			linear.NewClient(linear.DefaultEndpoint, httpClient),
		),
		Invites: service.NewInviteService(
			db.Pool(), repos.invites, repos.agents, mail, cfg.AppURL, config.InviteTTL,
		),
		Usage:         service.NewUsageService(repos.usage, repos.messages, entitlements),
		Relay:         relay,
		RealtimeModel: cfg.RealtimeModel,
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Streaming replies lift their own write deadline; websockets are hijacked.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.Metrics(mux),
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server",
			"server_addr", "http://localhost:"+cfg.Port,
			"billing", cfg.BillingEnabled(),
			"email", cfg.EmailEnabled(),
			"queue", cfg.QueueEnabled(),
			"realtime", cfg.RealtimeEnabled(),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-done:
		slog.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func runWorker(c *cli.Context) error {
	cfg := configFromCLI(c)
	if !cfg.QueueEnabled() {
		return errors.New("worker requires --redis-url")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	repos := newRepositories(db)

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	pipeline, err := newPipeline(cfg, db, repos, provider)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	srv, err := queue.NewServer(cfg.RedisURL, cfg.WorkerConcurrency, pipeline)
	if err != nil {
		return err
	}

	slog.Info("starting worker", "concurrency", cfg.WorkerConcurrency, "embeddings", cfg.EmbeddingsEnabled())
	return srv.Run(ctx)
}

func runMigrate(c *cli.Context) error {
	ctx := c.Context
	cfg := configFromCLI(c)

	db, err := database.New(ctx, cfg.DatabaseURL, 2)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if c.Bool("down") {
		return database.RollbackMigration(ctx, db.Pool())
	}
	return database.RunMigrations(ctx, db.Pool())
}

func runMaintain(c *cli.Context) error {
	ctx := c.Context
	cfg := configFromCLI(c)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	repos := newRepositories(db)

	// Redis is only needed to drop cached plans of lapsed users.
	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	maintenance := service.NewMaintenanceService(
		repos.knowledge, repos.invites, repos.billing,
		newEntitlements(repos, rdb), config.StuckProcessingAfter,
	)

	result, err := maintenance.Run(ctx)
	if err != nil {
		return fmt.Errorf("maintenance failed: %w", err)
	}

	slog.Info("maintenance finished",
		"stuck_files_failed", result.StuckFilesFailed,
		"invites_expired", result.InvitesExpired,
		"subscriptions_expired", result.SubscriptionsExpired,
	)
	return nil
}
