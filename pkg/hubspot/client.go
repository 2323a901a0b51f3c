// Package hubspot is the CRM collaborator: read-only deal snapshot assembly
// and quote/line-item creation against the HubSpot CRM v3 API.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"proposalbot/pkg/apierrors"
	"proposalbot/pkg/logx"
)

// DefaultTimeout bounds a single CRM round trip.
const DefaultTimeout = 10 * time.Second

// Client is an authenticated HubSpot CRM API client. Safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	portalID   string
	httpClient *http.Client
	logger     *logx.Logger
	onRetry    apierrors.Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (tests point it at mock servers).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithRetryObserver wires retry events into metrics.
func WithRetryObserver(observe apierrors.Observer) Option {
	return func(c *Client) { c.onRetry = observe }
}

// NewClient creates a HubSpot client for the given portal.
func NewClient(baseURL, apiKey, portalID string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		portalID:   portalID,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logx.NewLogger("hubspot"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PortalID returns the workspace id the client is bound to.
func (c *Client) PortalID() string {
	return c.portalID
}

// get performs a retried GET, decoding the JSON response into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	return apierrors.DoWithObserver(ctx, func(ctx context.Context) error {
		return c.roundTrip(ctx, http.MethodGet, path, params, nil, out)
	}, c.onRetry)
}

// post performs a retried POST with a JSON body.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return apierrors.DoWithObserver(ctx, func(ctx context.Context) error {
		return c.roundTrip(ctx, http.MethodPost, path, nil, body, out)
	}, c.onRetry)
}

// put performs a retried PUT without a body (association calls).
func (c *Client) put(ctx context.Context, path string) error {
	return apierrors.DoWithObserver(ctx, func(ctx context.Context) error {
		return c.roundTrip(ctx, http.MethodPut, path, nil, nil, nil)
	}, c.onRetry)
}

// roundTrip is one attempt: build, send, classify.
func (c *Client) roundTrip(ctx context.Context, method, path string, params url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return apierrors.NewErrorWithCause(apierrors.ErrorTypeTransient, ctx.Err(), "request abandoned")
		}
		return apierrors.NewErrorWithCause(apierrors.ErrorTypeTransient, err, "transport failure")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.classifyResponse(method, path, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apierrors.NewErrorWithCause(apierrors.ErrorTypeTransient, err, "decode response body")
	}
	return nil
}

// classifyResponse maps a non-2xx CRM response to a classified error. The
// response body's message field is surfaced when present; it is what the CRM
// says about validation rejections.
func (c *Client) classifyResponse(method, path string, resp *http.Response) error {
	var crmErr struct {
		Message  string `json:"message"`
		Category string `json:"category"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&crmErr)

	errType := apierrors.ClassifyStatus(resp.StatusCode)
	message := crmErr.Message
	if message == "" {
		message = fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode)
	}

	c.logger.Debug("CRM error: %s %s -> %d (%s)", method, path, resp.StatusCode, errType)
	return apierrors.NewErrorWithStatus(errType, resp.StatusCode, message)
}
