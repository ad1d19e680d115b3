package domain

import "time"

// User is an account that owns agents and authenticates with an API token.
type User struct {
	ID               string
	Email            string
	Name             string
	APIToken         string
	StripeCustomerID *string
	IsActive         bool
	CreatedAt        time.Time
}
