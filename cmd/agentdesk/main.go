// @title			AgentDesk API
// @version		1.0
// @description	Backend for hosted AI agents: chat relay, knowledge ingestion, billing and integrations.
// @BasePath		/api/v1
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization

package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/mtlprog/agentdesk/internal/config"
	"github.com/mtlprog/agentdesk/internal/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "agentdesk",
		Usage: "Backend for hosted AI agents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "json",
				Usage:   "Log format (json, text)",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:     "database-url",
				Aliases:  []string{"d"},
				Value:    config.DefaultDatabaseURL,
				Usage:    "PostgreSQL database URL",
				EnvVars:  []string{"DATABASE_URL"},
				Required: true,
			},
			&cli.IntFlag{
				Name:    "db-max-conns",
				Value:   config.DefaultDBMaxConns,
				Usage:   "Maximum database connections",
				EnvVars: []string{"DB_MAX_CONNS"},
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the job queue, rate limits and plan cache (optional)",
				EnvVars: []string{"REDIS_URL"},
			},
			&cli.StringFlag{
				Name:    "openai-api-key",
				Usage:   "OpenAI API key",
				EnvVars: []string{"OPENAI_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "openai-base-url",
				Value:   config.DefaultOpenAIBaseURL,
				Usage:   "OpenAI-compatible API base URL",
				EnvVars: []string{"OPENAI_BASE_URL"},
			},
			&cli.StringFlag{
				Name:    "model",
				Value:   config.DefaultModel,
				Usage:   "Default chat model for new agents",
				EnvVars: []string{"OPENAI_MODEL"},
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Value:   config.DefaultEmbeddingModel,
				Usage:   "Embedding model for knowledge chunks (empty disables embeddings)",
				EnvVars: []string{"OPENAI_EMBEDDING_MODEL"},
			},
			&cli.StringFlag{
				Name:    "firecrawl-api-key",
				Usage:   "Firecrawl API key for URL knowledge sources",
				EnvVars: []string{"FIRECRAWL_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "firecrawl-base-url",
				Value:   config.DefaultFirecrawlBaseURL,
				Usage:   "Firecrawl API base URL",
				EnvVars: []string{"FIRECRAWL_BASE_URL"},
			},
			&cli.IntFlag{
				Name:    "chunk-size",
				Value:   config.DefaultChunkSize,
				Usage:   "Maximum knowledge chunk length in characters",
				EnvVars: []string{"CHUNK_SIZE"},
			},
			&cli.IntFlag{
				Name:    "ingest-workers",
				Value:   config.DefaultIngestWorkers,
				Usage:   "Concurrent embedding calls per knowledge file",
				EnvVars: []string{"INGEST_WORKERS"},
			},
			&cli.IntFlag{
				Name:    "chat-rate-limit",
				Value:   config.DefaultChatRateLimit,
				Usage:   "Chat messages a user may send per minute (needs Redis)",
				EnvVars: []string{"CHAT_RATE_LIMIT"},
			},
			&cli.StringFlag{
				Name:    "realtime-url",
				Value:   config.DefaultRealtimeURL,
				Usage:   "Upstream realtime websocket URL",
				EnvVars: []string{"OPENAI_REALTIME_URL"},
			},
			&cli.StringFlag{
				Name:    "realtime-model",
				Value:   config.DefaultRealtimeModel,
				Usage:   "Model requested for voice sessions",
				EnvVars: []string{"OPENAI_REALTIME_MODEL"},
			},
			&cli.StringFlag{
				Name:    "stripe-secret-key",
				Usage:   "Stripe secret key (empty disables billing)",
				EnvVars: []string{"STRIPE_SECRET_KEY"},
			},
			&cli.StringFlag{
				Name:    "stripe-webhook-secret",
				Usage:   "Stripe webhook signing secret",
				EnvVars: []string{"STRIPE_WEBHOOK_SECRET"},
			},
			&cli.StringFlag{
				Name:    "app-url",
				Value:   config.DefaultAppURL,
				Usage:   "Public frontend URL for checkout redirects and invite links",
				EnvVars: []string{"APP_URL"},
			},
			&cli.StringFlag{
				Name:    "aws-region",
				Usage:   "AWS region for SES",
				EnvVars: []string{"AWS_REGION"},
			},
			&cli.StringFlag{
				Name:    "email-from",
				Usage:   "Verified SES sender address",
				EnvVars: []string{"EMAIL_FROM"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(logger.ParseLevel(c.String("log-level")), c.String("log-format"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the web server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Value:   config.DefaultPort,
						Usage:   "HTTP server port",
						EnvVars: []string{"PORT"},
					},
				},
				Action: runServe,
			},
			{
				Name:  "worker",
				Usage: "Process knowledge ingestion jobs from Redis",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "concurrency",
						Value:   config.DefaultWorkerConcurrency,
						Usage:   "Knowledge jobs processed at once",
						EnvVars: []string{"WORKER_CONCURRENCY"},
					},
				},
				Action: runWorker,
			},
			{
				Name:  "migrate",
				Usage: "Apply pending migrations, or revert the latest one with --down",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "down",
						Usage: "Revert the most recent migration",
					},
				},
				Action: runMigrate,
			},
			{
				Name:   "maintain",
				Usage:  "Fail stuck knowledge files, expire invites and lapsed subscriptions",
				Action: runMaintain,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

// configFromCLI collects settings. Root flags are visible from every subcommand.
func configFromCLI(c *cli.Context) config.Config {
	port := c.String("port")
	if port == "" {
		port = config.DefaultPort
	}
	concurrency := c.Int("concurrency")
	if concurrency <= 0 {
		concurrency = config.DefaultWorkerConcurrency
	}

	return config.Config{
		Port:        port,
		DatabaseURL: c.String("database-url"),
		DBMaxConns:  c.Int("db-max-conns"),
		RedisURL:    c.String("redis-url"),

		OpenAIAPIKey:   c.String("openai-api-key"),
		OpenAIBaseURL:  c.String("openai-base-url"),
		Model:          c.String("model"),
		EmbeddingModel: c.String("embedding-model"),
		RealtimeURL:    c.String("realtime-url"),
		RealtimeModel:  c.String("realtime-model"),

		StripeSecretKey:     c.String("stripe-secret-key"),
		StripeWebhookSecret: c.String("stripe-webhook-secret"),
		AppURL:              c.String("app-url"),

		FirecrawlAPIKey:  c.String("firecrawl-api-key"),
		FirecrawlBaseURL: c.String("firecrawl-base-url"),

		AWSRegion: c.String("aws-region"),
		EmailFrom: c.String("email-from"),

		ChunkSize:         c.Int("chunk-size"),
		IngestWorkers:     c.Int("ingest-workers"),
		WorkerConcurrency: concurrency,
		ChatRateLimit:     c.Int("chat-rate-limit"),
	}
}
