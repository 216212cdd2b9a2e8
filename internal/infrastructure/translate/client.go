// Package translate holds the HTTP translation backends used by the
// translation engine, in their default priority order: the Google Translate
// mobile page, the MyMemory API and the Google gtx endpoint.
package translate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"DigestHarvester/internal/config"
	"DigestHarvester/internal/translation"
)

const (
	userAgent    = "Mozilla/5.0 (Linux; Android 10) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36"
	maxErrorBody = 1024
	maxBody      = 1 << 20
)

// client is the transport shared by every provider: one timeout-bound
// http.Client and an optional request-rate limiter.
type client struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
}

func newClient(endpoint string, httpClient *http.Client, requestsPerSecond float64, timeout time.Duration) client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	return client{
		endpoint: endpoint,
		http:     httpClient,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

func (c client) get(ctx context.Context, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	endpoint := c.endpoint
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// NewProviders builds the configured providers in priority order.
func NewProviders(cfg config.TranslationConfig, httpClient *http.Client) ([]translation.Provider, error) {
	providers := make([]translation.Provider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		c := newClient(p.BaseURL, httpClient, p.RequestsPerSecond, cfg.Timeout)
		switch p.Name {
		case GoogleWebName:
			providers = append(providers, &GoogleWeb{client: c})
		case MyMemoryName:
			providers = append(providers, &MyMemory{client: c, email: p.Email})
		case GoogleAPIName:
			providers = append(providers, &GoogleAPI{client: c})
		default:
			return nil, fmt.Errorf("unknown translation provider %q", p.Name)
		}
	}
	return providers, nil
}
