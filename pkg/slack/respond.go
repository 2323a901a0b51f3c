package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"proposalbot/pkg/apierrors"
)

// ErrAlreadyDelivered is returned when a second delivery is attempted through
// a single-use responder.
var ErrAlreadyDelivered = errors.New("response already delivered for this invocation")

// DefaultResponseTimeout bounds the POST to the response_url.
const DefaultResponseTimeout = 10 * time.Second

// OnceResponder posts exactly one message to a slash command's response_url.
// The response_url is a single-use capability: a bug that would deliver twice
// surfaces as ErrAlreadyDelivered instead of a duplicate message.
type OnceResponder struct {
	responseURL string
	httpClient  *http.Client
	mu          sync.Mutex
	delivered   bool
}

// NewOnceResponder creates a single-use responder for one invocation.
// A nil httpClient gets a default with DefaultResponseTimeout.
func NewOnceResponder(responseURL string, httpClient *http.Client) *OnceResponder {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultResponseTimeout}
	}
	return &OnceResponder{responseURL: responseURL, httpClient: httpClient}
}

// Respond posts the message to the response_url. The guard is claimed before
// the network call: a transport failure still consumes the single use, since
// Slack may have received the request.
func (r *OnceResponder) Respond(ctx context.Context, msg Message) error {
	r.mu.Lock()
	if r.delivered {
		r.mu.Unlock()
		return ErrAlreadyDelivered
	}
	r.delivered = true
	r.mu.Unlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal response payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.responseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build response request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return apierrors.NewErrorWithCause(apierrors.ErrorTypeTransient, err, "post to response_url")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apierrors.NewErrorWithStatus(apierrors.ClassifyStatus(resp.StatusCode), resp.StatusCode,
			"response_url rejected delivery")
	}
	return nil
}

// Delivered reports whether the single use has been consumed.
func (r *OnceResponder) Delivered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delivered
}
