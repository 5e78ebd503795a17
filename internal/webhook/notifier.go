// Package webhook posts finalized submissions to an external automation sink.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"discovery/api/internal/logging"
)

type Config struct {
	URL     string
	Timeout time.Duration
}

// Notifier delivers JSON payloads to the configured URL. Delivery through
// Fire is best effort and never reported to the caller.
type Notifier struct {
	cfg        Config
	httpClient *http.Client
	log        *logging.Logger
	wg         sync.WaitGroup
}

func New(cfg Config, log *logging.Logger) *Notifier {
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Notifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With("component", "webhook"),
	}
}

func (n *Notifier) IsConfigured() bool {
	return n != nil && n.cfg.URL != ""
}

// Notify posts payload as JSON and waits for the response. Non-2xx
// responses are errors.
func (n *Notifier) Notify(ctx context.Context, payload any) error {
	if !n.IsConfigured() {
		return fmt.Errorf("webhook not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Fire delivers payload on a detached goroutine. The request outlives ctx's
// cancellation; its outcome is logged and dropped.
func (n *Notifier) Fire(ctx context.Context, payload any) {
	if !n.IsConfigured() {
		return
	}
	detached := context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ignoreResult(n.log, "webhook delivery", n.Notify(detached, payload))
	}()
}

// Wait blocks until every fired delivery has finished.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

func ignoreResult(log *logging.Logger, op string, err error) {
	if err != nil {
		log.Warn(op+" failed", "error", err)
	}
}
