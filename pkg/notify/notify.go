// Package notify fires best-effort webhook callbacks on optimization
// completion.
//
// Delivery is parallel, retry-free, and never surfaces errors to the
// caller: an unreachable sink or a non-2xx response is logged and dropped.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/imgforge/internal/logger"
)

// Callback describes one webhook sink.
type Callback struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// DefaultTimeout bounds each webhook request.
const DefaultTimeout = 10 * time.Second

// Notifier delivers payloads to callback sinks.
type Notifier struct {
	client *http.Client
}

// NewNotifier creates a Notifier with the given per-request timeout.
// A non-positive timeout falls back to DefaultTimeout.
func NewNotifier(timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Notifier{
		client: &http.Client{Timeout: timeout},
	}
}

// Notify delivers payload to every callback concurrently and returns once
// all deliveries have settled. Invalid URLs are skipped with a warning;
// failures are logged, never retried, never propagated.
func (n *Notifier) Notify(ctx context.Context, callbacks []Callback, payload any) {
	if len(callbacks) == 0 {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("cannot serialize callback payload", "error", err)
		return
	}

	var g errgroup.Group
	for _, cb := range callbacks {
		g.Go(func() error {
			n.deliver(ctx, cb, body)
			return nil
		})
	}
	_ = g.Wait()
}

func (n *Notifier) deliver(ctx context.Context, cb Callback, body []byte) {
	parsed, err := url.Parse(cb.URL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		logger.Warn("skipping callback with invalid url", "callback_url", cb.URL)
		return
	}

	method := cb.Method
	if method == "" {
		method = http.MethodPost
	}

	var reqBody io.Reader
	if method != http.MethodGet {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, cb.URL, reqBody)
	if err != nil {
		logger.Warn("cannot build callback request", "callback_url", cb.URL, "error", err)
		return
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range cb.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := n.client.Do(req)
	if err != nil {
		logger.Warn("callback delivery failed",
			"callback_url", cb.URL, "error", err, "duration_ms", logger.Duration(start))
		return
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("callback returned non-2xx",
			"callback_url", cb.URL, "status", resp.StatusCode, "duration_ms", logger.Duration(start))
		return
	}

	logger.Debug("callback delivered",
		"callback_url", cb.URL, "status", resp.StatusCode, "duration_ms", logger.Duration(start))
}
