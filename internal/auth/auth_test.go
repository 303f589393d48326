package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sabarim/txbars/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func credentialServer(t *testing.T, creds AuthCredentials, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/zerodha/credentials", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("service"))
		assert.Equal(t, "svc-key", r.Header.Get("X-API-Key"))
		if status != http.StatusOK {
			http.Error(w, "unavailable", status)
			return
		}
		_ = json.NewEncoder(w).Encode(creds)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginThroughAuthService(t *testing.T) {
	srv := credentialServer(t, AuthCredentials{ApiKey: "k", ApiSecret: "s", SessionToken: "tok", IsActive: true}, http.StatusOK)
	logger, _ := test.NewNullLogger()

	am := NewAuthManager(config.AuthConfig{AuthServiceURL: srv.URL + "/", AuthServiceAPIKey: "svc-key", BrokerName: "zerodha"}, logger)
	creds, err := am.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AuthCredentialsResult{ApiKey: "k", SessionToken: "tok"}, creds)

	client, err := am.GetClient(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestLoginFallsBackToDirectCredentials(t *testing.T) {
	srv := credentialServer(t, AuthCredentials{}, http.StatusServiceUnavailable)
	logger, hook := test.NewNullLogger()

	am := NewAuthManager(config.AuthConfig{
		AuthServiceURL:    srv.URL,
		AuthServiceAPIKey: "svc-key",
		BrokerName:        "zerodha",
		ApiKey:            "direct",
		SessionToken:      "direct-tok",
	}, logger)
	creds, err := am.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "direct", creds.ApiKey)

	var warned bool
	for _, e := range hook.AllEntries() {
		warned = warned || e.Level == logrus.WarnLevel
	}
	assert.True(t, warned)
}

func TestInactiveCredentialsRejected(t *testing.T) {
	srv := credentialServer(t, AuthCredentials{ApiKey: "k", ApiSecret: "s", SessionToken: "tok"}, http.StatusOK)
	logger, _ := test.NewNullLogger()

	ac := NewAuthClient(srv.URL, "svc-key", logger)
	_, err := ac.GetBrokerCredentials(context.Background(), "zerodha")
	assert.ErrorContains(t, err, "inactive")
}

func TestLoginWithoutCredentials(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := NewAuthManager(config.AuthConfig{BrokerName: "zerodha"}, logger).Login(context.Background())
	assert.ErrorIs(t, err, ErrNoCredentials)
}
