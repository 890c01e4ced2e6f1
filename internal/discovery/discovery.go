// Package discovery implements the record source strategies: sitemap XML,
// paginated HTML listings, paginated REST JSON, a single GraphQL query and
// a raw JSON record list.
//
// Every strategy yields sources lazily in upstream order. Discovery
// requests are never retried: a network error ends the strategy with an
// error, a non-2xx status ends it quietly.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/courthouse-harvester/internal/extract"
	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
)

// Strategy names accepted by New.
const (
	StrategySitemap = "sitemap"
	StrategyListing = "listing"
	StrategyREST    = "rest"
	StrategyGraphQL = "graphql"
	StrategyRecords = "records"
)

// Strategies lists every supported strategy name.
var Strategies = []string{StrategySitemap, StrategyListing, StrategyREST, StrategyGraphQL, StrategyRecords}

// Config selects and parameterizes one strategy.
type Config struct {
	Strategy      string        `mapstructure:"strategy"`
	DetailPattern string        `mapstructure:"detail_pattern"`
	Fields        FieldPaths    `mapstructure:"fields"`
	Sitemap       SitemapConfig `mapstructure:"sitemap"`
	Listing       ListingConfig `mapstructure:"listing"`
	REST          RESTConfig    `mapstructure:"rest"`
	GraphQL       GraphQLConfig `mapstructure:"graphql"`
	Records       RecordsConfig `mapstructure:"records"`
}

// Dependencies are the collaborators shared by all strategies.
type Dependencies struct {
	Mode harvest.Mode
	// HTML fetches sitemap and listing documents.
	HTML harvest.Fetcher
	// API fetches JSON endpoints.
	API     harvest.Fetcher
	Timeout time.Duration
	Logger  *zap.Logger
}

// New builds the discoverer named by cfg.Strategy.
func New(cfg Config, deps Dependencies) (harvest.Discoverer, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	logger := deps.Logger.Named("discovery")
	fields := cfg.Fields

	switch strings.ToLower(cfg.Strategy) {
	case StrategySitemap:
		pattern, err := extract.CompileDetailPattern(cfg.DetailPattern)
		if err != nil {
			return nil, err
		}
		if err := requireURL(StrategySitemap, cfg.Sitemap.URL); err != nil {
			return nil, err
		}
		return NewSitemap(cfg.Sitemap, pattern, deps.HTML, deps.Timeout, logger), nil
	case StrategyListing:
		pattern, err := extract.CompileDetailPattern(cfg.DetailPattern)
		if err != nil {
			return nil, err
		}
		if err := requireURL(StrategyListing, cfg.Listing.URLTemplate); err != nil {
			return nil, err
		}
		return NewListing(cfg.Listing, pattern, deps.HTML, deps.Timeout, logger), nil
	case StrategyREST:
		if err := requireURL(StrategyREST, cfg.REST.URL); err != nil {
			return nil, err
		}
		return NewREST(cfg.REST, NewItemMapper(deps.Mode, fields, cfg.REST.URL, logger), deps.API, deps.Timeout, logger), nil
	case StrategyGraphQL:
		if err := requireURL(StrategyGraphQL, cfg.GraphQL.URL); err != nil {
			return nil, err
		}
		if cfg.GraphQL.Query == "" {
			return nil, fmt.Errorf("graphql discovery requires a query")
		}
		return NewGraphQL(cfg.GraphQL, NewItemMapper(deps.Mode, fields, cfg.GraphQL.URL, logger), deps.API, deps.Timeout, logger), nil
	case StrategyRecords:
		if err := requireURL(StrategyRecords, cfg.Records.URL); err != nil {
			return nil, err
		}
		return NewRecords(cfg.Records, NewItemMapper(deps.Mode, fields, cfg.Records.URL, logger), deps.API, deps.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown discovery strategy %q", cfg.Strategy)
	}
}

func requireURL(strategy, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s discovery requires a url", strategy)
	}
	return nil
}

// fetchOnce issues a single discovery request. The response is returned
// whatever its status; only network failures produce an error.
func fetchOnce(ctx context.Context, fetcher harvest.Fetcher, req harvest.FetchRequest) (harvest.FetchResponse, error) {
	resp, err := fetcher.Fetch(ctx, req)
	if err != nil {
		return harvest.FetchResponse{}, fmt.Errorf("discovery fetch %s: %w", req.URL, err)
	}
	return resp, nil
}
