package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// AuthClient is a client for interacting with the auth_service
type AuthClient struct {
	authServiceURL string
	apiKey         string
	httpClient     *http.Client
	logger         logrus.FieldLogger
}

// NewAuthClient creates a new auth client
func NewAuthClient(authServiceURL string, apiKey string, logger logrus.FieldLogger) *AuthClient {
	return &AuthClient{
		authServiceURL: strings.TrimSuffix(authServiceURL, "/"),
		apiKey:         apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// GetBrokerCredentials fetches broker credentials from the auth_service
func (ac *AuthClient) GetBrokerCredentials(ctx context.Context, broker string) (*AuthCredentials, error) {
	// service=true marks a service-to-service call
	url := fmt.Sprintf("%s/auth/%s/credentials?service=true", ac.authServiceURL, broker)
	ac.logger.WithField("url", url).Debug("requesting broker credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", ac.apiKey)

	resp, err := ac.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to auth service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("auth service returned error status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	var credentials AuthCredentials
	if err := json.NewDecoder(resp.Body).Decode(&credentials); err != nil {
		return nil, fmt.Errorf("failed to parse auth service response: %w", err)
	}

	if credentials.ApiKey == "" || credentials.ApiSecret == "" {
		return nil, errors.New("received incomplete credentials from auth service")
	}
	if credentials.SessionToken == "" {
		return nil, errors.New("received credentials without session token from auth service")
	}
	if !credentials.IsActive {
		return nil, errors.New("received inactive credentials from auth service")
	}

	return &credentials, nil
}
