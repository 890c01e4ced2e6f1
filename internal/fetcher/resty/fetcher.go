// Package restyfetcher implements harvest.Fetcher on top of go-resty for the
// JSON endpoints (REST pages, GraphQL, record lists).
package restyfetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
)

// Config controls the underlying resty client.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher issues JSON API requests with a shared resty client.
type Fetcher struct {
	client *resty.Client
}

// New builds a Fetcher. Resty retries stay disabled; the worker owns retry
// policy.
func New(cfg Config) *Fetcher {
	client := resty.New().
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Fetcher{client: client}
}

// NewWithClient wraps an existing resty client.
func NewWithClient(client *resty.Client) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch executes the request and returns the response whatever its status.
func (f *Fetcher) Fetch(ctx context.Context, request harvest.FetchRequest) (harvest.FetchResponse, error) {
	if request.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, request.Timeout)
		defer cancel()
	}
	method := request.Method
	if method == "" {
		method = http.MethodGet
	}

	req := f.client.R().SetContext(ctx)
	for key, values := range request.Headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if len(request.Body) > 0 {
		if request.Headers.Get("Content-Type") == "" {
			req.SetHeader("Content-Type", "application/json")
		}
		req.SetBody(request.Body)
	}

	resp, err := req.Execute(method, request.URL)
	if err != nil {
		return harvest.FetchResponse{}, fmt.Errorf("resty %s %s: %w", method, request.URL, err)
	}

	finalURL := request.URL
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		finalURL = raw.Request.URL.String()
	}
	return harvest.FetchResponse{
		URL:        finalURL,
		StatusCode: resp.StatusCode(),
		Headers:    resp.Header().Clone(),
		Body:       resp.Body(),
		Duration:   resp.Time(),
	}, nil
}
