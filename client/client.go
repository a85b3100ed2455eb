// Package client wires the full session lifecycle stack: credential store,
// identity client, session manager, and the authorized request pipeline.
// It is the surface UI collaborators consume.
package client

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/expensahq/expensa-go/credentials"
	"github.com/expensahq/expensa-go/httpclient"
	"github.com/expensahq/expensa-go/identity"
	"github.com/expensahq/expensa-go/internal/config"
	"github.com/expensahq/expensa-go/session"
)

// Client is the assembled session lifecycle manager.
type Client struct {
	manager    *session.Manager
	httpClient *http.Client
}

// New assembles a Client from configuration. Credentials persist in the
// configured file store; all identity calls are bounded by the configured
// timeout.
func New(cfg config.Config) (*Client, error) {
	store := credentials.NewFileStore(cfg.GetCredentialsFile())
	idp := identity.NewHTTPClient(cfg.GetAPIBaseURL(), identity.WithTimeout(cfg.GetIdentityTimeout()))

	manager, err := session.NewManager(idp, store)
	if err != nil {
		return nil, errors.Wrap(err, "client.New")
	}

	return &Client{
		manager:    manager,
		httpClient: httpclient.NewClient(manager, cfg.GetRequestTimeout()),
	}, nil
}

// Initialize hydrates the session from persisted credentials.
func (c *Client) Initialize(ctx context.Context) error {
	return c.manager.Initialize(ctx)
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*identity.LoginResult, error) {
	return c.manager.Login(ctx, email, password)
}

// Register creates a new account and logs it in.
func (c *Client) Register(ctx context.Context, reg identity.Registration) (*identity.LoginResult, error) {
	return c.manager.Register(ctx, reg)
}

// Logout clears the session locally; the remote notification is best effort.
func (c *Client) Logout(ctx context.Context) {
	c.manager.Logout(ctx)
}

// SwitchTenant changes the active company to an existing membership.
func (c *Client) SwitchTenant(tenantID string) error {
	return c.manager.SwitchTenant(tenantID)
}

// Session returns a read-only snapshot of the session state.
func (c *Client) Session() session.Session {
	return c.manager.Session()
}

// Observe registers fn for session transitions; the returned function
// cancels the subscription.
func (c *Client) Observe(fn func(session.Session)) (cancel func()) {
	return c.manager.Observe(fn)
}

// UpdateProfile updates the user's name.
func (c *Client) UpdateProfile(ctx context.Context, firstName, lastName string) error {
	return c.manager.UpdateProfile(ctx, firstName, lastName)
}

// ChangePassword changes the account password.
func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	return c.manager.ChangePassword(ctx, currentPassword, newPassword)
}

// HTTPClient returns the authorized client API collaborators must use. Every
// request carries the bearer and tenant headers and recovers once from
// credential expiry.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Do issues req through the authorized pipeline.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}
