package identity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/expensahq/expensa-go/identity"
	apperrors "github.com/expensahq/expensa-go/internal/errors"
)

const (
	testEmail    = "john.doe@example.com"
	testPassword = "password123"
)

func TestLoginSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/auth/login", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, testEmail, body["email"])
		require.Equal(t, testPassword, body["password"])

		// Company and user ids arrive as JSON numbers.
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"user": {"id": 42, "email": "john.doe@example.com", "firstName": "John", "lastName": "Doe"},
			"companies": [{"id": 1, "name": "Acme", "role": "admin"}, {"id": 2, "name": "Globex", "role": "user"}],
			"accessToken": "access-1",
			"refreshToken": "refresh-1"
		}`))
	}))
	defer server.Close()

	c := identity.NewHTTPClient(server.URL + "/api")
	result, err := c.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, "42", result.User.ID)
	require.Equal(t, "John", result.User.FirstName)
	require.Len(t, result.Tenants, 2)
	require.Equal(t, "1", result.Tenants[0].ID)
	require.Equal(t, "admin", result.Tenants[0].Role)
	require.Equal(t, "access-1", result.AccessToken)
	require.Equal(t, "refresh-1", result.RefreshToken)
}

func TestLoginInvalidCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "Invalid email or password"}`))
	}))
	defer server.Close()

	c := identity.NewHTTPClient(server.URL)
	_, err := c.Login(context.Background(), testEmail, "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	require.Contains(t, err.Error(), "Invalid email or password")
}

func TestRefreshSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/refresh", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "refresh-1", body["refreshToken"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"accessToken": "access-2"}`))
	}))
	defer server.Close()

	c := identity.NewHTTPClient(server.URL)
	pair, err := c.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	require.Equal(t, "access-2", pair.AccessToken)
	require.Empty(t, pair.RefreshToken, "no rotation unless the service returns one")
}

func TestRefreshRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := identity.NewHTTPClient(server.URL)
	_, err := c.Refresh(context.Background(), "revoked")
	require.ErrorIs(t, err, apperrors.ErrSessionExpired)
}

func TestRefreshServiceFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := identity.NewHTTPClient(server.URL)
	_, err := c.Refresh(context.Background(), "refresh-1")
	require.ErrorIs(t, err, apperrors.ErrRefreshFailed)
}

func TestRefreshNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused

	c := identity.NewHTTPClient(server.URL, identity.WithTimeout(time.Second))
	_, err := c.Refresh(context.Background(), "refresh-1")
	require.ErrorIs(t, err, apperrors.ErrRefreshFailed)
}

func TestLogoutSendsBearer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/logout", r.URL.Path)
		require.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		w.Write([]byte(`{"message": "Logout successful"}`))
	}))
	defer server.Close()

	c := identity.NewHTTPClient(server.URL)
	require.NoError(t, c.Logout(context.Background(), "access-1"))
}

func TestTenants(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/companies", r.URL.Path)
		require.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"companies": [{"id": "acme", "name": "Acme", "role": "admin"}]}`))
	}))
	defer server.Close()

	c := identity.NewHTTPClient(server.URL)
	memberships, err := c.Tenants(context.Background(), "access-1")
	require.NoError(t, err)
	require.Len(t, memberships, 1)
	require.Equal(t, "acme", memberships[0].ID)
}

func TestTenantsUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := identity.NewHTTPClient(server.URL)
	_, err := c.Tenants(context.Background(), "stale")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRegisterFallsBackToSingleCompany(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/register", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{
			"user": {"id": 7, "email": "new@example.com", "firstName": "New", "lastName": "User"},
			"company": {"id": 3, "name": "New's Company", "role": "admin"},
			"accessToken": "access-1",
			"refreshToken": "refresh-1"
		}`))
	}))
	defer server.Close()

	c := identity.NewHTTPClient(server.URL)
	result, err := c.Register(context.Background(), identity.Registration{
		Email:     "new@example.com",
		Password:  testPassword,
		FirstName: "New",
		LastName:  "User",
	})
	require.NoError(t, err)
	require.Len(t, result.Tenants, 1)
	require.Equal(t, "3", result.Tenants[0].ID)
}
