// Package config holds runtime settings assembled from CLI flags and environment.
package config

import "time"

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = "8080"

	// DefaultDatabaseURL is empty; must be provided via flag or environment.
	DefaultDatabaseURL = ""

	// DefaultOpenAIBaseURL is the public OpenAI API endpoint.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used for agents created without an explicit model.
	DefaultModel = "gpt-4o-mini"

	// DefaultEmbeddingModel is used for knowledge chunk embeddings.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultRealtimeURL is the upstream websocket for voice sessions.
	DefaultRealtimeURL = "wss://api.openai.com/v1/realtime"

	// DefaultRealtimeModel is the model requested for voice sessions.
	DefaultRealtimeModel = "gpt-4o-realtime-preview"

	// DefaultFirecrawlBaseURL is the Firecrawl scrape API.
	DefaultFirecrawlBaseURL = "https://api.firecrawl.dev"

	// DefaultAppURL is where Stripe redirects after checkout.
	DefaultAppURL = "http://localhost:5173"

	// DefaultChunkSize is the maximum knowledge chunk length in characters.
	DefaultChunkSize = 1000

	// DefaultIngestWorkers bounds concurrent embedding calls per file.
	DefaultIngestWorkers = 4

	// DefaultWorkerConcurrency is the number of knowledge jobs a worker runs at once.
	DefaultWorkerConcurrency = 4

	// DefaultDBMaxConns caps the connection pool.
	DefaultDBMaxConns = 20

	// DefaultChatRateLimit is the number of chat messages a user may send per minute.
	DefaultChatRateLimit = 20

	// StuckProcessingAfter marks knowledge files failed when processing exceeds it.
	StuckProcessingAfter = 30 * time.Minute

	// InviteTTL is how long an invite stays acceptable.
	InviteTTL = 7 * 24 * time.Hour
)

// Config is the full set of runtime settings.
type Config struct {
	Port        string
	DatabaseURL string
	DBMaxConns  int
	RedisURL    string

	OpenAIAPIKey   string
	OpenAIBaseURL  string
	Model          string
	EmbeddingModel string
	RealtimeURL    string
	RealtimeModel  string

	StripeSecretKey     string
	StripeWebhookSecret string
	AppURL              string

	FirecrawlAPIKey  string
	FirecrawlBaseURL string

	AWSRegion string
	EmailFrom string

	ChunkSize         int
	IngestWorkers     int
	WorkerConcurrency int
	ChatRateLimit     int
}

// EmbeddingsEnabled reports whether chunks should be embedded during ingestion.
func (c *Config) EmbeddingsEnabled() bool {
	return c.OpenAIAPIKey != "" && c.EmbeddingModel != ""
}

// BillingEnabled reports whether Stripe credentials are present.
func (c *Config) BillingEnabled() bool {
	return c.StripeSecretKey != ""
}

// RealtimeEnabled reports whether voice sessions can be relayed.
func (c *Config) RealtimeEnabled() bool {
	return c.OpenAIAPIKey != "" && c.RealtimeURL != ""
}

// QueueEnabled reports whether ingestion goes through Redis instead of running in-process.
func (c *Config) QueueEnabled() bool {
	return c.RedisURL != ""
}

// EmailEnabled reports whether SES sending is configured.
func (c *Config) EmailEnabled() bool {
	return c.AWSRegion != "" && c.EmailFrom != ""
}
