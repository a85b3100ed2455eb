package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/expensahq/expensa-go/client"
	"github.com/expensahq/expensa-go/credentials"
	"github.com/expensahq/expensa-go/internal/config"
	"github.com/expensahq/expensa-go/session"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":        "42",
		"email":     "john.doe@example.com",
		"firstName": "John",
		"lastName":  "Doe",
		"iat":       time.Now().Unix(),
		"exp":       expiresAt.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

// TestConcurrentExpiryTriggersSingleRenewal drives the full stack against a
// scripted platform: two requests fire with a stale access token, both hit
// 401, exactly one renewal POST occurs, and both retried requests carry the
// same new bearer token.
func TestConcurrentExpiryTriggersSingleRenewal(t *testing.T) {
	staleToken := signedToken(t, time.Now().Add(15*time.Minute))
	freshToken := signedToken(t, time.Now().Add(30*time.Minute))
	refreshToken := signedToken(t, time.Now().Add(7*24*time.Hour))

	firstWave := make(chan struct{}) // closed once both stale requests arrived
	release := make(chan struct{})   // gates the renewal response
	var staleHits, refreshHits, freshHits atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"user": {"id": 42, "email": "john.doe@example.com", "firstName": "John", "lastName": "Doe"},
			"companies": [{"id": 1, "name": "Acme", "role": "admin"}],
			"accessToken": "` + staleToken + `",
			"refreshToken": "` + refreshToken + `"
		}`))
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshHits.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"accessToken": "` + freshToken + `"}`))
	})
	mux.HandleFunc("GET /data", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer " + staleToken:
			if staleHits.Add(1) == 2 {
				close(firstWave)
			}
			<-firstWave
			w.WriteHeader(http.StatusUnauthorized)
		case "Bearer " + freshToken:
			freshHits.Add(1)
			require.Equal(t, "1", r.Header.Get("X-Company-ID"))
			w.Write([]byte("ok"))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	credsFile := filepath.Join(t.TempDir(), "credentials.json")
	t.Setenv("API_BASE_URL", server.URL)
	t.Setenv("CREDENTIALS_FILE", credsFile)

	sdk, err := client.New(config.New())
	require.NoError(t, err)

	_, err = sdk.Login(context.Background(), "john.doe@example.com", "password123")
	require.NoError(t, err)
	require.Equal(t, session.StatusAuthenticated, sdk.Session().Status)

	// Release the renewal only after both stale requests have been rejected
	// and both callers have had time to join the flight.
	go func() {
		<-firstWave
		time.Sleep(200 * time.Millisecond)
		close(release)
	}()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodGet, server.URL+"/data", nil)
			require.NoError(t, err)
			resp, err := sdk.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), refreshHits.Load(), "exactly one renewal exchange")
	require.Equal(t, int32(2), freshHits.Load(), "both retries carry the renewed token")
	require.Equal(t, freshToken, sdk.Session().AccessToken)

	// The credential store ends with the renewed pair.
	stored, err := credentials.NewFileStore(credsFile).Load()
	require.NoError(t, err)
	require.Equal(t, freshToken, stored.AccessToken)
	require.Equal(t, refreshToken, stored.RefreshToken)
}

func TestSwitchTenantAffectsSubsequentRequests(t *testing.T) {
	accessToken := signedToken(t, time.Now().Add(15*time.Minute))
	refreshToken := signedToken(t, time.Now().Add(7*24*time.Hour))

	var lock sync.Mutex
	var tenantHeaders []string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"user": {"id": 42, "email": "john.doe@example.com", "firstName": "John", "lastName": "Doe"},
			"companies": [{"id": 1, "name": "Acme", "role": "admin"}, {"id": 2, "name": "Globex", "role": "user"}],
			"accessToken": "` + accessToken + `",
			"refreshToken": "` + refreshToken + `"
		}`))
	})
	mux.HandleFunc("GET /data", func(w http.ResponseWriter, r *http.Request) {
		lock.Lock()
		tenantHeaders = append(tenantHeaders, r.Header.Get("X-Company-ID"))
		lock.Unlock()
		w.Write([]byte("ok"))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	t.Setenv("API_BASE_URL", server.URL)
	t.Setenv("CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials.json"))

	sdk, err := client.New(config.New())
	require.NoError(t, err)

	_, err = sdk.Login(context.Background(), "john.doe@example.com", "password123")
	require.NoError(t, err)

	get := func() {
		req, err := http.NewRequest(http.MethodGet, server.URL+"/data", nil)
		require.NoError(t, err)
		resp, err := sdk.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
	}

	get()
	require.NoError(t, sdk.SwitchTenant("2"))
	get()

	lock.Lock()
	defer lock.Unlock()
	require.Equal(t, []string{"1", "2"}, tenantHeaders)
}
