package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
)

// GraphQLConfig describes a single query returning every facility.
type GraphQLConfig struct {
	URL       string         `mapstructure:"url"`
	Query     string         `mapstructure:"query"`
	Variables map[string]any `mapstructure:"variables"`
	// Limit caps the result count. It is passed as LimitVariable and also
	// enforced client side.
	Limit         int               `mapstructure:"limit"`
	LimitVariable string            `mapstructure:"limit_variable"`
	ResultsPath   string            `mapstructure:"results_path"`
	Headers       map[string]string `mapstructure:"headers"`
}

// GraphQL issues one POST and yields the returned items.
type GraphQL struct {
	cfg     GraphQLConfig
	mapper  ItemMapper
	fetcher harvest.Fetcher
	timeout time.Duration
	logger  *zap.Logger
}

// NewGraphQL builds a GraphQL discoverer.
func NewGraphQL(cfg GraphQLConfig, mapper ItemMapper, fetcher harvest.Fetcher, timeout time.Duration, logger *zap.Logger) *GraphQL {
	if cfg.LimitVariable == "" {
		cfg.LimitVariable = "limit"
	}
	if cfg.ResultsPath == "" {
		cfg.ResultsPath = "data.results"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphQL{cfg: cfg, mapper: mapper, fetcher: fetcher, timeout: timeout, logger: logger}
}

// Name implements harvest.Discoverer.
func (g *GraphQL) Name() string { return StrategyGraphQL }

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Discover implements harvest.Discoverer.
func (g *GraphQL) Discover(ctx context.Context) iter.Seq2[harvest.RecordSource, error] {
	return func(yield func(harvest.RecordSource, error) bool) {
		variables := maps.Clone(g.cfg.Variables)
		if g.cfg.Limit > 0 {
			if variables == nil {
				variables = make(map[string]any, 1)
			}
			variables[g.cfg.LimitVariable] = g.cfg.Limit
		}
		body, err := json.Marshal(graphqlRequest{Query: g.cfg.Query, Variables: variables})
		if err != nil {
			yield(harvest.RecordSource{}, fmt.Errorf("encode graphql request: %w", err))
			return
		}
		headers := toHeader(g.cfg.Headers)
		if headers == nil {
			headers = http.Header{}
		}
		headers.Set("Content-Type", "application/json")

		resp, err := fetchOnce(ctx, g.fetcher, harvest.FetchRequest{
			URL:     g.cfg.URL,
			Method:  http.MethodPost,
			Headers: headers,
			Body:    body,
			Timeout: g.timeout,
		})
		if err != nil {
			yield(harvest.RecordSource{}, err)
			return
		}
		if !resp.OK() {
			g.logger.Warn("graphql request rejected",
				zap.String("url", g.cfg.URL),
				zap.Int("status", resp.StatusCode),
			)
			return
		}
		doc, err := decodeJSON(resp.Body)
		if err != nil {
			yield(harvest.RecordSource{}, fmt.Errorf("graphql response: %w", err))
			return
		}
		if errs := listAt(doc, "errors"); len(errs) > 0 {
			yield(harvest.RecordSource{}, fmt.Errorf("graphql returned %d errors: %s", len(errs), stringAt(errs[0], "message")))
			return
		}

		items := listAt(doc, g.cfg.ResultsPath)
		if g.cfg.Limit > 0 && len(items) > g.cfg.Limit {
			items = items[:g.cfg.Limit]
		}
		for _, item := range items {
			source, ok := g.mapper.Source(item)
			if !ok {
				continue
			}
			if !yield(source, nil) {
				return
			}
		}
	}
}
