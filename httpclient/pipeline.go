package httpclient

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/expensahq/expensa-go/internal/errors"
)

// TenantHeader carries the active company id on every scoped request.
const TenantHeader = "X-Company-ID"

// SessionSource is the narrow session capability the pipeline needs: read
// the current token and tenant, and request a renewal. *session.Manager
// satisfies it.
type SessionSource interface {
	AccessToken() string
	ActiveTenantID() string
	Refresh(ctx context.Context) (string, error)
}

// Pipeline decorates outbound requests with authorization and tenant
// headers, and recovers once from credential expiry: a 401 triggers a
// renewal and a single reissue of the original request. A second 401 is
// terminal.
//
// Headers are composed per request from injected dependencies; the pipeline
// never alters success responses or inspects bodies.
type Pipeline struct {
	src  SessionSource
	base http.RoundTripper
}

var _ http.RoundTripper = (*Pipeline)(nil)

type PipelineOption func(*Pipeline)

// WithTransport replaces the underlying transport (primarily for testing).
func WithTransport(rt http.RoundTripper) PipelineOption {
	return func(p *Pipeline) {
		p.base = rt
	}
}

// New creates a Pipeline reading session state from src.
func New(src SessionSource, options ...PipelineOption) *Pipeline {
	p := &Pipeline{
		src:  src,
		base: http.DefaultTransport,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// NewClient wraps the pipeline in an *http.Client. This is the client all
// API collaborators should issue calls through.
func NewClient(src SessionSource, timeout time.Duration, options ...PipelineOption) *http.Client {
	return &http.Client{
		Transport: New(src, options...),
		Timeout:   timeout,
	}
}

func (p *Pipeline) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := p.base.RoundTrip(p.decorate(req, p.src.AccessToken()))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// A body without GetBody cannot be replayed; pass the 401 through.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	requestID := uuid.New().String()
	log.Debug().Str("request_id", requestID).Str("url", req.URL.Path).Msg("Received 401, renewing token")
	drain(resp)

	accessToken, err := p.src.Refresh(req.Context())
	if err != nil {
		return nil, apperrors.Wrapf(err, "request pipeline refresh")
	}

	retry, err := replay(req)
	if err != nil {
		return nil, err
	}

	resp, err = p.base.RoundTrip(p.decorate(retry, accessToken))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		return nil, apperrors.Wrapf(apperrors.ErrUnauthorized, "%s %s after retry", req.Method, req.URL.Path)
	}
	return resp, nil
}

// decorate returns a copy of req with the bearer token and tenant headers
// attached. The original request is never mutated.
func (p *Pipeline) decorate(req *http.Request, accessToken string) *http.Request {
	out := req.Clone(req.Context())
	if accessToken != "" {
		out.Header.Set("Authorization", "Bearer "+accessToken)
	} else {
		out.Header.Del("Authorization")
	}
	if tenantID := p.src.ActiveTenantID(); tenantID != "" {
		out.Header.Set(TenantHeader, tenantID)
	} else {
		out.Header.Del(TenantHeader)
	}
	return out
}

// replay rebuilds the original request with a fresh body.
func replay(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, apperrors.Wrapf(err, "replay request body")
		}
		out.Body = body
	}
	return out, nil
}

// drain discards the body so the connection can be reused.
func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
	resp.Body.Close()
}
