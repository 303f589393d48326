// Package auth obtains broker credentials and builds an authenticated Kite client.
package auth

// AuthCredentials is the auth_service credential payload for one broker account.
type AuthCredentials struct {
	ID           int    `json:"id"`
	Broker       string `json:"broker"`
	ApiKey       string `json:"api_key"`
	ApiSecret    string `json:"api_secret"`
	SessionToken string `json:"session_token"`
	IsActive     bool   `json:"is_active"`
	AccountID    string `json:"account_id"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// AuthCredentialsResult is what a successful Login resolves to.
type AuthCredentialsResult struct {
	ApiKey       string
	SessionToken string
}
