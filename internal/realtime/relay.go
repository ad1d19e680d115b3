// Package realtime relays a client websocket to the provider's realtime voice API.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mtlprog/agentdesk/internal/metrics"
)

// Session carries the agent settings applied to the upstream session.
type Session struct {
	UserID       string
	AgentID      string
	Model        string
	Instructions string
	Voice        string
}

type sessionUpdate struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	Instructions string   `json:"instructions,omitempty"`
	Voice        string   `json:"voice,omitempty"`
	Modalities   []string `json:"modalities"`
}

// SessionUpdate builds the first frame sent upstream.
func SessionUpdate(s Session) ([]byte, error) {
	return json.Marshal(sessionUpdate{
		Type: "session.update",
		Session: sessionConfig{
			Instructions: s.Instructions,
			Voice:        s.Voice,
			Modalities:   []string{"text", "audio"},
		},
	})
}

// Relay pumps frames between a client and the provider until either side closes.
type Relay struct {
	upstreamURL string
	apiKey      string
	dialer      *websocket.Dialer
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

// NewRelay creates a relay for the provider realtime endpoint.
func NewRelay(upstreamURL, apiKey string) *Relay {
	return &Relay{
		upstreamURL: upstreamURL,
		apiKey:      apiKey,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 15 * time.Second,
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 << 10,
			WriteBufferSize: 16 << 10,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: slog.Default().With("component", "realtime"),
	}
}

func (r *Relay) dialURL(model string) (string, error) {
	u, err := url.Parse(r.upstreamURL)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	if model != "" {
		q := u.Query()
		q.Set("model", model)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Serve upgrades the request and relays until one side disconnects. It writes the
// HTTP error itself when the upgrade fails.
func (r *Relay) Serve(w http.ResponseWriter, req *http.Request, s Session) error {
	clientWS, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}
	client := newConnection(clientWS)

	sessionID := uuid.NewString()
	logger := r.logger.With("session_id", sessionID, "agent_id", s.AgentID, "user_id", s.UserID)

	target, err := r.dialURL(s.Model)
	if err != nil {
		client.Close(websocket.CloseInternalServerErr, "bad upstream configuration")
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+r.apiKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	upstreamWS, resp, err := r.dialer.DialContext(req.Context(), target, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		client.Close(websocket.CloseTryAgainLater, "upstream unavailable")
		return fmt.Errorf("dial upstream: %w", err)
	}
	upstream := newConnection(upstreamWS)

	update, err := SessionUpdate(s)
	if err != nil {
		client.Close(websocket.CloseInternalServerErr, "session setup failed")
		upstream.Close(websocket.CloseNormalClosure, "")
		return err
	}

	client.Start()
	upstream.Start()
	if err := upstream.Send(websocket.TextMessage, update); err != nil {
		client.Close(websocket.CloseTryAgainLater, "upstream unavailable")
		upstream.Close(websocket.CloseNormalClosure, "")
		return err
	}

	metrics.RealtimeSessions.Inc()
	defer metrics.RealtimeSessions.Dec()
	logger.Info("realtime session opened", "model", s.Model)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pump(client, upstream)
	}()
	go func() {
		defer wg.Done()
		pump(upstream, client)
	}()
	wg.Wait()

	logger.Info("realtime session closed")
	return nil
}

// pump copies frames from src to dst; when src ends both sides are closed.
func pump(src, dst *Connection) {
	code, reason := websocket.CloseNormalClosure, ""
	for {
		messageType, data, err := src.Read()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseNoStatusReceived && closeErr.Code != websocket.CloseAbnormalClosure {
				code, reason = closeErr.Code, closeErr.Text
			}
			break
		}
		if err := dst.Send(messageType, data); err != nil {
			break
		}
	}
	dst.Close(code, reason)
	src.Close(code, reason)
}
