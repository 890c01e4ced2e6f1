package discovery

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
	"github.com/JakeFAU/courthouse-harvester/internal/urlutil"
)

const defaultRESTMaxPages = 100

// RESTConfig describes a page-numbered JSON search endpoint.
type RESTConfig struct {
	URL         string            `mapstructure:"url"`
	PageParam   string            `mapstructure:"page_param"`
	StartPage   int               `mapstructure:"start_page"`
	MaxPages    int               `mapstructure:"max_pages"`
	Query       map[string]string `mapstructure:"query"`
	Headers     map[string]string `mapstructure:"headers"`
	ResultsPath string            `mapstructure:"results_path"`
	// NextPath names the "has next page" marker: a URL, flag or count.
	NextPath string `mapstructure:"next_path"`
}

// REST pages through a JSON endpoint until a page is empty, non-2xx or
// carries no next marker.
type REST struct {
	cfg     RESTConfig
	mapper  ItemMapper
	fetcher harvest.Fetcher
	timeout time.Duration
	logger  *zap.Logger
}

// NewREST builds a REST discoverer.
func NewREST(cfg RESTConfig, mapper ItemMapper, fetcher harvest.Fetcher, timeout time.Duration, logger *zap.Logger) *REST {
	if cfg.PageParam == "" {
		cfg.PageParam = "page"
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultRESTMaxPages
	}
	if cfg.ResultsPath == "" {
		cfg.ResultsPath = "results"
	}
	if cfg.NextPath == "" {
		cfg.NextPath = "next_page_url"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &REST{cfg: cfg, mapper: mapper, fetcher: fetcher, timeout: timeout, logger: logger}
}

// Name implements harvest.Discoverer.
func (r *REST) Name() string { return StrategyREST }

// Discover implements harvest.Discoverer.
func (r *REST) Discover(ctx context.Context) iter.Seq2[harvest.RecordSource, error] {
	return func(yield func(harvest.RecordSource, error) bool) {
		for page := r.cfg.StartPage; page < r.cfg.StartPage+r.cfg.MaxPages; page++ {
			params := maps.Clone(r.cfg.Query)
			if params == nil {
				params = make(map[string]string, 1)
			}
			params[r.cfg.PageParam] = strconv.Itoa(page)
			pageURL, err := urlutil.WithQuery(r.cfg.URL, params)
			if err != nil {
				yield(harvest.RecordSource{}, fmt.Errorf("build rest url: %w", err))
				return
			}

			resp, err := fetchOnce(ctx, r.fetcher, harvest.FetchRequest{
				URL:     pageURL,
				Method:  http.MethodGet,
				Headers: toHeader(r.cfg.Headers),
				Timeout: r.timeout,
			})
			if err != nil {
				yield(harvest.RecordSource{}, err)
				return
			}
			if !resp.OK() {
				r.logger.Warn("rest request rejected",
					zap.String("url", pageURL),
					zap.Int("status", resp.StatusCode),
				)
				return
			}
			doc, err := decodeJSON(resp.Body)
			if err != nil {
				yield(harvest.RecordSource{}, fmt.Errorf("rest page %d: %w", page, err))
				return
			}

			items := listAt(doc, r.cfg.ResultsPath)
			if len(items) == 0 {
				r.logger.Debug("rest ended on empty page", zap.Int("page", page))
				return
			}
			for _, item := range items {
				source, ok := r.mapper.Source(item)
				if !ok {
					continue
				}
				if !yield(source, nil) {
					return
				}
			}

			marker, _ := lookup(doc, r.cfg.NextPath)
			if !truthy(marker) {
				return
			}
		}
	}
}

func toHeader(values map[string]string) http.Header {
	if len(values) == 0 {
		return nil
	}
	header := make(http.Header, len(values))
	for key, value := range values {
		header.Set(key, value)
	}
	return header
}
