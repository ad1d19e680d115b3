package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mtlprog/agentdesk/docs" // Import generated docs
	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/mtlprog/agentdesk/internal/handler/dto"
	"github.com/mtlprog/agentdesk/internal/middleware"
	"github.com/mtlprog/agentdesk/internal/realtime"
	"github.com/mtlprog/agentdesk/internal/repository"
	"github.com/mtlprog/agentdesk/internal/service"
	"github.com/mtlprog/agentdesk/internal/static"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

const maxJSONBodyBytes = 1 << 20

// RealtimeRelay bridges a client websocket to the provider.
type RealtimeRelay interface {
	Serve(w http.ResponseWriter, r *http.Request, s realtime.Session) error
}

// Dependencies are the services the handlers call. Relay may be nil when realtime
// voice is not configured.
type Dependencies struct {
	Pool          *pgxpool.Pool
	Users         *repository.UserRepository
	Agents        *service.AgentService
	Chat          *service.ChatService
	Knowledge     *service.KnowledgeService
	Billing       *service.BillingService
	Integrations  *service.IntegrationService
	Invites       *service.InviteService
	Usage         *service.UsageService
	Relay         RealtimeRelay
	RealtimeModel string
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	pool           *pgxpool.Pool
	agents         *service.AgentService
	chat           *service.ChatService
	knowledge      *service.KnowledgeService
	billing        *service.BillingService
	integrations   *service.IntegrationService
	invites        *service.InviteService
	usage          *service.UsageService
	relay          RealtimeRelay
	realtimeModel  string
	authMiddleware *middleware.AuthMiddleware
}

// New creates a new Handler instance with all dependencies.
func New(deps Dependencies) *Handler {
	return &Handler{
		pool:           deps.Pool,
		agents:         deps.Agents,
		chat:           deps.Chat,
		knowledge:      deps.Knowledge,
		billing:        deps.Billing,
		integrations:   deps.Integrations,
		invites:        deps.Invites,
		usage:          deps.Usage,
		relay:          deps.Relay,
		realtimeModel:  deps.RealtimeModel,
		authMiddleware: middleware.NewAuthMiddleware(deps.Users),
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /healthz", h.handleHealthz)

	// Static API guide
	mux.HandleFunc("GET /api.md", h.handleAPIMd)

	// Swagger UI
	mux.HandleFunc("GET /swagger/", httpSwagger.Handler())

	// Prometheus
	mux.Handle("GET /metrics", promhttp.Handler())

	// Public API routes
	mux.HandleFunc("GET /api/v1/plans", h.handleListPlans)
	mux.HandleFunc("POST /api/v1/billing/webhook", h.handleStripeWebhook)

	// Agents
	mux.Handle("GET /api/v1/agents", h.auth(h.handleListAgents))
	mux.Handle("POST /api/v1/agents", h.auth(h.handleCreateAgent))
	mux.Handle("GET /api/v1/agents/{id}", h.auth(h.handleGetAgent))
	mux.Handle("PATCH /api/v1/agents/{id}", h.auth(h.handleUpdateAgent))
	mux.Handle("DELETE /api/v1/agents/{id}", h.auth(h.handleDeleteAgent))

	// Chat
	mux.Handle("GET /api/v1/conversations", h.auth(h.handleListConversations))
	mux.Handle("POST /api/v1/conversations", h.auth(h.handleStartConversation))
	mux.Handle("GET /api/v1/conversations/{id}", h.auth(h.handleGetConversation))
	mux.Handle("POST /api/v1/conversations/{id}/messages", h.auth(h.handleSendMessage))

	// Knowledge
	mux.Handle("GET /api/v1/agents/{id}/knowledge/files", h.auth(h.handleListKnowledgeFiles))
	mux.Handle("POST /api/v1/agents/{id}/knowledge/files", h.auth(h.handleUploadKnowledgeFile))
	mux.Handle("POST /api/v1/agents/{id}/knowledge/urls", h.auth(h.handleAddKnowledgeURL))
	mux.Handle("POST /api/v1/knowledge/files/{id}/reprocess", h.auth(h.handleReprocessKnowledgeFile))
	mux.Handle("DELETE /api/v1/knowledge/files/{id}", h.auth(h.handleDeleteKnowledgeFile))

	// Billing
	mux.Handle("GET /api/v1/billing/subscription", h.auth(h.handleGetSubscription))
	mux.Handle("POST /api/v1/billing/checkout", h.auth(h.handleCheckout))
	mux.Handle("POST /api/v1/billing/payouts", h.auth(h.handleCreatePayout))

	// Integrations
	mux.Handle("PUT /api/v1/integrations/{provider}", h.auth(h.handleConnectIntegration))
	mux.Handle("POST /api/v1/integrations/github/repos", h.auth(h.handleCreateGitHubRepo))
	mux.Handle("POST /api/v1/integrations/linear/issues", h.auth(h.handleCreateLinearIssue))

	// Invites and email
	mux.Handle("GET /api/v1/invites", h.auth(h.handleListInvites))
	mux.Handle("POST /api/v1/invites", h.auth(h.handleCreateInvite))
	mux.Handle("POST /api/v1/invites/{token}/accept", h.auth(h.handleAcceptInvite))
	mux.Handle("POST /api/v1/email", h.auth(h.handleSendEmail))

	// Realtime voice
	mux.Handle("GET /api/v1/realtime", h.auth(h.handleRealtime))

	// Usage
	mux.Handle("GET /api/v1/usage", h.auth(h.handleGetUsage))
}

func (h *Handler) auth(fn http.HandlerFunc) http.Handler {
	return h.authMiddleware.Authenticate(fn)
}

// handleHealthz returns 200 OK if the database is reachable.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.pool.Ping(ctx); err != nil {
		slog.Error("database health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleAPIMd serves the embedded API guide.
func (h *Handler) handleAPIMd(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(static.APIMd))
}

// Ping checks if the database is reachable (used for testing).
func (h *Handler) Ping(ctx context.Context) error {
	return h.pool.Ping(ctx)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a standard error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dto.NewErrorResponse(code, message))
}

// respondDomainError maps err through MapDomainError and writes it.
func respondDomainError(w http.ResponseWriter, err error) {
	status, code, message := dto.MapDomainError(err)
	respondError(w, status, code, message)
}

// currentUser extracts the authenticated user. Returns false if the error was already sent.
func currentUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	user, err := middleware.GetUserFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return nil, false
	}
	return user, true
}

// decodeJSON reads a size-limited JSON body into dst.
// Returns false if the body was invalid (error already sent to client).
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	return true
}

// pathUUID extracts and validates a UUID path parameter.
// Returns (id, true) if valid, ("", false) if invalid (error already sent to client).
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := r.PathValue(name)
	if id == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", name+" is required")
		return "", false
	}

	if _, err := uuid.Parse(id); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", name+" must be a valid UUID")
		return "", false
	}

	return id, true
}

// queryUUID reads an optional UUID query parameter.
func queryUUID(w http.ResponseWriter, r *http.Request, name string) (*string, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	if _, err := uuid.Parse(v); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", name+" must be a valid UUID")
		return nil, false
	}
	return &v, true
}

// pagination parses ?limit= and ?offset=, ignoring out-of-range values.
func pagination(r *http.Request) (limit, offset int) {
	query := r.URL.Query()

	limit = 50
	if limitParam := query.Get("limit"); limitParam != "" {
		if n, err := strconv.Atoi(limitParam); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	if offsetParam := query.Get("offset"); offsetParam != "" {
		if n, err := strconv.Atoi(offsetParam); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
