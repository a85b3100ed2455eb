package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	apperrors "github.com/expensahq/expensa-go/internal/errors"
	"github.com/expensahq/expensa-go/tenants"
)

const defaultCallTimeout = 10 * time.Second

// Client is the identity-service surface the session manager depends on.
type Client interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Register(ctx context.Context, reg Registration) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
	Tenants(ctx context.Context, accessToken string) ([]tenants.Tenant, error)
	UpdateProfile(ctx context.Context, accessToken, firstName, lastName string) error
	ChangePassword(ctx context.Context, accessToken, currentPassword, newPassword string) error
}

// HTTPClient is the production Client implementation over the platform's
// identity endpoints.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

type HTTPClientOption func(*HTTPClient)

// WithTimeout bounds each identity-service call.
func WithTimeout(timeout time.Duration) HTTPClientOption {
	return func(c *HTTPClient) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client (primarily for testing).
func WithHTTPClient(hc *http.Client) HTTPClientOption {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// NewHTTPClient creates an identity client against the given API base URL
// (e.g., "https://api.expensa.example.com/api").
func NewHTTPClient(baseURL string, options ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultCallTimeout},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{"email": email, "password": password}

	resp, err := c.post(ctx, "/auth/login", "", body)
	if err != nil {
		return nil, errors.Wrap(err, "identity.Login")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errors.Wrap(apperrors.ErrInvalidCredentials, serviceError(resp))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity.Login: service returned status %d", resp.StatusCode)
	}

	var result loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "identity.Login decode")
	}
	return result.toLoginResult(), nil
}

func (c *HTTPClient) Register(ctx context.Context, reg Registration) (*LoginResult, error) {
	resp, err := c.post(ctx, "/auth/register", "", reg)
	if err != nil {
		return nil, errors.Wrap(err, "identity.Register")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("identity.Register: %s", serviceError(resp))
	}

	var result loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "identity.Register decode")
	}
	return result.toLoginResult(), nil
}

// Refresh exchanges the refresh token for a new access token. A 401/403 means
// the refresh token itself is no longer accepted; any other failure is
// treated as transient.
func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	body := map[string]string{"refreshToken": refreshToken}

	resp, err := c.post(ctx, "/auth/refresh", "", body)
	if err != nil {
		return nil, errors.Wrap(apperrors.ErrRefreshFailed, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.Wrap(apperrors.ErrSessionExpired, serviceError(resp))
	case resp.StatusCode != http.StatusOK:
		return nil, errors.Wrapf(apperrors.ErrRefreshFailed, "service returned status %d", resp.StatusCode)
	}

	var pair TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return nil, errors.Wrap(apperrors.ErrRefreshFailed, err.Error())
	}
	if pair.AccessToken == "" {
		return nil, errors.Wrap(apperrors.ErrRefreshFailed, "no access token in response")
	}
	return &pair, nil
}

func (c *HTTPClient) Logout(ctx context.Context, accessToken string) error {
	resp, err := c.post(ctx, "/auth/logout", accessToken, nil)
	if err != nil {
		return errors.Wrap(err, "identity.Logout")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("identity.Logout: service returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) Tenants(ctx context.Context, accessToken string) ([]tenants.Tenant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/companies", nil)
	if err != nil {
		return nil, errors.Wrap(err, "identity.Tenants")
	}
	authorize(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "identity.Tenants")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errors.Wrap(apperrors.ErrUnauthorized, serviceError(resp))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity.Tenants: service returned status %d", resp.StatusCode)
	}

	var result struct {
		Companies []wireTenant `json:"companies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "identity.Tenants decode")
	}

	memberships := make([]tenants.Tenant, 0, len(result.Companies))
	for _, company := range result.Companies {
		memberships = append(memberships, company.toTenant())
	}
	return memberships, nil
}

func (c *HTTPClient) UpdateProfile(ctx context.Context, accessToken, firstName, lastName string) error {
	body := map[string]string{"firstName": firstName, "lastName": lastName}

	resp, err := c.put(ctx, "/auth/profile", accessToken, body)
	if err != nil {
		return errors.Wrap(err, "identity.UpdateProfile")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("identity.UpdateProfile: %s", serviceError(resp))
	}
	return nil
}

func (c *HTTPClient) ChangePassword(ctx context.Context, accessToken, currentPassword, newPassword string) error {
	body := map[string]string{"currentPassword": currentPassword, "newPassword": newPassword}

	resp, err := c.put(ctx, "/auth/password", accessToken, body)
	if err != nil {
		return errors.Wrap(err, "identity.ChangePassword")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errors.Wrap(apperrors.ErrInvalidCredentials, serviceError(resp))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("identity.ChangePassword: %s", serviceError(resp))
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path, accessToken string, body any) (*http.Response, error) {
	return c.send(ctx, http.MethodPost, path, accessToken, body)
}

func (c *HTTPClient) put(ctx context.Context, path, accessToken string, body any) (*http.Response, error) {
	return c.send(ctx, http.MethodPut, path, accessToken, body)
}

func (c *HTTPClient) send(ctx context.Context, method, path, accessToken string, body any) (*http.Response, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "marshal request body")
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	authorize(req, accessToken)

	return c.httpClient.Do(req)
}

func authorize(req *http.Request, accessToken string) {
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

// serviceError extracts the service's {"error": "..."} message, falling back
// to the HTTP status.
func serviceError(resp *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil && body.Error != "" {
		return body.Error
	}
	return fmt.Sprintf("service returned status %d", resp.StatusCode)
}
