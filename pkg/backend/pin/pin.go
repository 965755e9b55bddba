// Package pin implements the content-addressed backend adapter against an
// IPFS-compatible pinning HTTP API.
//
// The pin service exposes the usual RPC-over-HTTP endpoints:
//
//	POST /api/v0/pin/ls?arg=<hash>   — report pin status for a hash
//	POST /api/v0/pin/rm?arg=<hash>   — remove the pin for a hash
//
// Unpinning is all-or-nothing per hash. The daemon answers "not pinned" with
// an HTTP 500 carrying a JSON error message, so the adapter inspects the
// message body to turn that case into an idempotent no-op rather than a
// failure.
package pin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mediasweep/mediasweep/internal/logger"
	"github.com/mediasweep/mediasweep/pkg/backend"
)

// PinBackend talks to an IPFS-compatible pin service.
//
// Thread Safety:
// Safe for concurrent use; the underlying http.Client is concurrency-safe and
// the adapter holds no mutable state.
type PinBackend struct {
	endpoint string
	client   *http.Client
	retry    backend.RetryPolicy
}

// Config contains configuration for the pin backend.
type Config struct {
	// Endpoint is the base URL of the pin service API
	// (e.g. "http://127.0.0.1:5001")
	Endpoint string

	// RequestTimeout bounds each HTTP call (default: 30s). The adapter
	// owns per-call timeouts; the engine adds none of its own.
	RequestTimeout time.Duration

	// Retry bounds the exponential backoff for transient failures
	// (default: backend.DefaultRetryPolicy)
	Retry backend.RetryPolicy
}

// New creates a pin backend adapter.
func New(cfg Config) (*PinBackend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("pin backend: endpoint is required")
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = backend.DefaultRetryPolicy()
	}

	return &PinBackend{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
		retry:    retry,
	}, nil
}

// pinLsResponse is the success body of pin/ls.
type pinLsResponse struct {
	Keys map[string]struct {
		Type string `json:"Type"`
	} `json:"Keys"`
}

// apiError is the error body the daemon returns with non-200 statuses.
type apiError struct {
	Message string `json:"Message"`
}

// IsPinned reports whether the hash is currently pinned.
func (p *PinBackend) IsPinned(ctx context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, fmt.Errorf("pin ls: %w: empty hash", backend.ErrMalformedLocator)
	}

	var pinned bool
	err := backend.Retry(ctx, p.retry, "pin ls", func() error {
		var err error
		pinned, err = p.isPinnedOnce(ctx, hash)
		return err
	})
	if err != nil {
		return false, err
	}
	return pinned, nil
}

// Unpin removes the pin for a hash.
//
// The hash's presence is checked first: unpinning an already-absent hash is
// an idempotent no-op returning (false, nil). A "not pinned" answer from the
// remove call itself (lost race with another unpinner) is treated the same
// way.
func (p *PinBackend) Unpin(ctx context.Context, hash string) (bool, error) {
	pinned, err := p.IsPinned(ctx, hash)
	if err != nil {
		return false, err
	}
	if !pinned {
		logger.Debug("pin backend: %s already unpinned", hash)
		return false, nil
	}

	removed := false
	err = backend.Retry(ctx, p.retry, "pin rm", func() error {
		var err error
		removed, err = p.unpinOnce(ctx, hash)
		return err
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (p *PinBackend) isPinnedOnce(ctx context.Context, hash string) (bool, error) {
	body, status, err := p.call(ctx, "/api/v0/pin/ls", hash)
	if err != nil {
		return false, err
	}

	if status == http.StatusOK {
		var resp pinLsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return false, fmt.Errorf("pin ls: failed to decode response: %w", err)
		}
		_, ok := resp.Keys[hash]
		return ok, nil
	}

	if isNotPinned(body) {
		return false, nil
	}

	return false, statusError("pin ls", status, body)
}

func (p *PinBackend) unpinOnce(ctx context.Context, hash string) (bool, error) {
	body, status, err := p.call(ctx, "/api/v0/pin/rm", hash)
	if err != nil {
		return false, err
	}

	if status == http.StatusOK {
		return true, nil
	}

	if isNotPinned(body) {
		return false, nil
	}

	return false, statusError("pin rm", status, body)
}

// call performs one POST against the pin API and returns the raw body.
// Transport-level failures surface as-is; net.Error implementations are
// classified transient by backend.Transient.
func (p *PinBackend) call(ctx context.Context, apiPath, hash string) ([]byte, int, error) {
	u := p.endpoint + apiPath + "?arg=" + url.QueryEscape(hash)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("pin backend: failed to build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("pin backend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("pin backend: failed to read response: %w", err)
	}

	return body, resp.StatusCode, nil
}

// isNotPinned detects the daemon's "not pinned" error body.
func isNotPinned(body []byte) bool {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return false
	}
	return strings.Contains(apiErr.Message, "not pinned")
}

// statusError maps an HTTP status to the backend error taxonomy.
func statusError(op string, status int, body []byte) error {
	var apiErr apiError
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}

	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w: %s", op, backend.ErrNotFound, msg)
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%s: %w: status %d: %s", op, backend.ErrUnavailable, status, msg)
	default:
		return fmt.Errorf("%s: unexpected status %d: %s", op, status, msg)
	}
}
