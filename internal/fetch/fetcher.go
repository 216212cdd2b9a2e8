// Package fetch retrieves listing and article pages with a bounded
// transport-level retry policy.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"DigestHarvester/internal/config"
	"DigestHarvester/internal/logging"
)

var (
	// ErrUnexpectedStatus marks responses whose status is not 2xx.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrBodyTooLarge marks documents longer than FetchConfig.MaxBodyBytes.
	ErrBodyTooLarge = errors.New("response body exceeds limit")
)

const maxBackoffInterval = 30 * time.Second

// FetchError is returned once every attempt for a URL has failed.
type FetchError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d after %d attempt(s): %v", e.URL, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher performs GET requests, retrying connection/read failures and the
// configured server-error statuses with exponential backoff.
type Fetcher struct {
	client    *http.Client
	cfg       config.FetchConfig
	retryable map[int]bool
	logger    *slog.Logger
}

// New wires an HTTP client; a nil client gets one bounded by cfg.Timeout.
func New(client *http.Client, cfg config.FetchConfig, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	retryable := make(map[int]bool, len(cfg.RetryStatuses))
	for _, code := range cfg.RetryStatuses {
		retryable[code] = true
	}

	if logger == nil {
		logger = logging.Discard()
	}

	return &Fetcher{
		client:    client,
		cfg:       cfg,
		retryable: retryable,
		logger:    logger,
	}
}

// Fetch returns the raw document body or a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var (
		body       []byte
		attempts   int
		lastStatus int
	)

	op := func() error {
		attempts++
		lastStatus = 0

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		if f.cfg.UserAgent != "" {
			req.Header.Set("User-Agent", f.cfg.UserAgent)
		}
		req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("request document: %w", err)
		}
		defer resp.Body.Close()

		lastStatus = resp.StatusCode
		if f.retryable[resp.StatusCode] {
			return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
		}
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status))
		}

		var reader io.Reader = resp.Body
		if f.cfg.MaxBodyBytes > 0 {
			reader = io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1)
		}
		payload, err := io.ReadAll(reader)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if f.cfg.MaxBodyBytes > 0 && int64(len(payload)) > f.cfg.MaxBodyBytes {
			return backoff.Permanent(fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, f.cfg.MaxBodyBytes))
		}
		body = payload
		return nil
	}

	notify := func(err error, wait time.Duration) {
		f.logger.Debug("fetch attempt failed, retrying",
			"url", url,
			"attempt", attempts,
			"max_attempts", f.cfg.MaxAttempts,
			"wait", wait,
			"error", err)
	}

	if err := backoff.RetryNotify(op, f.policy(ctx), notify); err != nil {
		return nil, &FetchError{URL: url, StatusCode: lastStatus, Attempts: attempts, Err: err}
	}
	return body, nil
}

// policy allows MaxAttempts total tries, waiting BackoffFactor, 2×, 4×... in between.
func (f *Fetcher) policy(ctx context.Context) backoff.BackOff {
	var base backoff.BackOff = &backoff.ZeroBackOff{}
	if f.cfg.BackoffFactor > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = f.cfg.BackoffFactor
		exp.Multiplier = 2
		exp.RandomizationFactor = 0
		exp.MaxInterval = maxBackoffInterval
		exp.MaxElapsedTime = 0
		base = exp
	}
	return backoff.WithContext(backoff.WithMaxRetries(base, uint64(f.cfg.MaxAttempts-1)), ctx)
}
