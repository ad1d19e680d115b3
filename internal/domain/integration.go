package domain

import "time"

// IntegrationProvider names a third-party service a user can connect.
type IntegrationProvider string

const (
	IntegrationGitHub IntegrationProvider = "github"
	IntegrationLinear IntegrationProvider = "linear"
)

// IsValid checks if the provider is supported.
func (p IntegrationProvider) IsValid() bool {
	return p == IntegrationGitHub || p == IntegrationLinear
}

// Integration stores a user's access token for a provider.
type Integration struct {
	ID              string
	UserID          string
	Provider        IntegrationProvider
	AccessToken     string
	ExternalAccount string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
