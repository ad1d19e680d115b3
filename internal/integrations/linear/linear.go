// Package linear creates issues through Linear's GraphQL API.
package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mtlprog/agentdesk/internal/domain"
)

// DefaultEndpoint is Linear's GraphQL endpoint.
const DefaultEndpoint = "https://api.linear.app/graphql"

// Issue is a created Linear issue.
type Issue struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	URL        string `json:"url"`
}

// CreateIssueInput describes a new issue.
type CreateIssueInput struct {
	TeamID      string
	Title       string
	Description string
}

// Client calls the GraphQL endpoint with a user's API key.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a client. An empty endpoint uses DefaultEndpoint.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{endpoint: endpoint, http: httpClient}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

const viewerQuery = `query { viewer { id name email } }`

const issueCreateMutation = `mutation IssueCreate($input: IssueCreateInput!) {
  issueCreate(input: $input) {
    success
    issue { id identifier title url }
  }
}`

// Viewer returns the display name of the account the key belongs to.
func (c *Client) Viewer(ctx context.Context, token string) (string, error) {
	var data struct {
		Viewer struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"viewer"`
	}
	if err := c.do(ctx, token, graphQLRequest{Query: viewerQuery}, &data); err != nil {
		return "", err
	}
	if data.Viewer.Email != "" {
		return data.Viewer.Email, nil
	}
	return data.Viewer.Name, nil
}

// CreateIssue creates an issue in the given team.
func (c *Client) CreateIssue(ctx context.Context, token string, in CreateIssueInput) (*Issue, error) {
	input := map[string]any{
		"teamId": in.TeamID,
		"title":  in.Title,
	}
	if in.Description != "" {
		input["description"] = in.Description
	}

	var data struct {
		IssueCreate struct {
			Success bool   `json:"success"`
			Issue   *Issue `json:"issue"`
		} `json:"issueCreate"`
	}
	req := graphQLRequest{Query: issueCreateMutation, Variables: map[string]any{"input": input}}
	if err := c.do(ctx, token, req, &data); err != nil {
		return nil, err
	}
	if !data.IssueCreate.Success || data.IssueCreate.Issue == nil {
		return nil, fmt.Errorf("%w: linear did not create the issue", domain.ErrUpstreamFailed)
	}
	return data.IssueCreate.Issue, nil
}

func (c *Client) do(ctx context.Context, token string, body graphQLRequest, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Personal API keys go in the header as-is; OAuth tokens need the Bearer scheme.
	if strings.HasPrefix(token, "lin_api_") {
		req.Header.Set("Authorization", token)
	} else {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: linear: %v", domain.ErrUpstreamFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: linear rejected the access token", domain.ErrInvalidToken)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: linear: decode response (status %d): %v", domain.ErrUpstreamFailed, resp.StatusCode, err)
	}
	if len(envelope.Errors) > 0 {
		msgs := make([]string, len(envelope.Errors))
		for i, e := range envelope.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("%w: linear: %s", domain.ErrUpstreamFailed, strings.Join(msgs, "; "))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: linear: %s", domain.ErrUpstreamFailed, resp.Status)
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("%w: linear: decode data: %v", domain.ErrUpstreamFailed, err)
	}
	return nil
}
