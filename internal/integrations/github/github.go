// Package github creates repositories on behalf of a user's GitHub token.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v66/github"
	"github.com/mtlprog/agentdesk/internal/domain"
)

// Repository is a created repository.
type Repository struct {
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
	CloneURL string `json:"clone_url"`
	Private  bool   `json:"private"`
}

// CreateRepoInput describes a new repository.
type CreateRepoInput struct {
	Name        string
	Description string
	Private     bool
}

// Client wraps go-github.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client. An empty baseURL targets api.github.com.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, http: httpClient}
}

func (c *Client) api(token string) (*gh.Client, error) {
	client := gh.NewClient(c.http).WithAuthToken(token)
	if c.baseURL != "" {
		u, err := url.Parse(strings.TrimRight(c.baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		client.BaseURL = u
	}
	return client, nil
}

// Login returns the account name the token belongs to.
func (c *Client) Login(ctx context.Context, token string) (string, error) {
	client, err := c.api(token)
	if err != nil {
		return "", err
	}
	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return "", wrap("get user", err)
	}
	return user.GetLogin(), nil
}

// CreateRepository creates a repository owned by the token's user.
func (c *Client) CreateRepository(ctx context.Context, token string, in CreateRepoInput) (*Repository, error) {
	client, err := c.api(token)
	if err != nil {
		return nil, err
	}

	repo, _, err := client.Repositories.Create(ctx, "", &gh.Repository{
		Name:        gh.String(in.Name),
		Description: gh.String(in.Description),
		Private:     gh.Bool(in.Private),
		AutoInit:    gh.Bool(true),
	})
	if err != nil {
		return nil, wrap("create repository", err)
	}

	return &Repository{
		FullName: repo.GetFullName(),
		HTMLURL:  repo.GetHTMLURL(),
		CloneURL: repo.GetCloneURL(),
		Private:  repo.GetPrivate(),
	}, nil
}

func wrap(op string, err error) error {
	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: github rejected the access token", domain.ErrInvalidToken)
		case http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %s", domain.ErrValidation, respErr.Message)
		}
	}
	return fmt.Errorf("%w: github %s: %v", domain.ErrUpstreamFailed, op, err)
}
