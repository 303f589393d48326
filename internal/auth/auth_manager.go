package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/sabarim/txbars/internal/config"
	"github.com/sirupsen/logrus"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// ErrNoCredentials is returned when neither the auth service nor the direct
// configuration yields usable credentials.
var ErrNoCredentials = errors.New("no valid credentials available")

// AuthManager handles authentication with the broker API
type AuthManager struct {
	config     config.AuthConfig
	authClient *AuthClient
	logger     logrus.FieldLogger
}

// NewAuthManager creates a new authentication manager
func NewAuthManager(cfg config.AuthConfig, logger logrus.FieldLogger) *AuthManager {
	logger = logger.WithField("component", "auth")

	var authClient *AuthClient
	if cfg.AuthServiceURL != "" {
		authClient = NewAuthClient(cfg.AuthServiceURL, cfg.AuthServiceAPIKey, logger)
	}

	return &AuthManager{
		config:     cfg,
		authClient: authClient,
		logger:     logger,
	}
}

// Login resolves broker credentials. The auth service is tried first; the
// directly configured API key and session token are the fallback.
func (am *AuthManager) Login(ctx context.Context) (AuthCredentialsResult, error) {
	if am.authClient != nil && am.config.BrokerName != "" {
		credentials, err := am.authClient.GetBrokerCredentials(ctx, am.config.BrokerName)
		if err == nil {
			am.logger.WithField("broker", am.config.BrokerName).Info("authenticated through auth service")
			return AuthCredentialsResult{
				ApiKey:       credentials.ApiKey,
				SessionToken: credentials.SessionToken,
			}, nil
		}
		am.logger.WithError(err).Warn("auth service login failed, trying direct credentials")
	}

	if am.config.ApiKey != "" && am.config.SessionToken != "" {
		am.logger.Info("using direct credentials")
		return AuthCredentialsResult{
			ApiKey:       am.config.ApiKey,
			SessionToken: am.config.SessionToken,
		}, nil
	}

	return AuthCredentialsResult{}, fmt.Errorf("%w; set API key and session token in config or ensure auth_service is working", ErrNoCredentials)
}

// GetClient logs in and returns an authenticated KiteConnect client
func (am *AuthManager) GetClient(ctx context.Context) (*kiteconnect.Client, error) {
	creds, err := am.Login(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to login before getting client: %w", err)
	}

	kite := kiteconnect.New(creds.ApiKey)
	kite.SetAccessToken(creds.SessionToken)
	return kite, nil
}
