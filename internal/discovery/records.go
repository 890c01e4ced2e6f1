package discovery

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
)

// RecordsConfig points at an endpoint returning the whole record list.
type RecordsConfig struct {
	URL string `mapstructure:"url"`
	// ResultsPath locates the array; empty means the document root.
	ResultsPath string            `mapstructure:"results_path"`
	Headers     map[string]string `mapstructure:"headers"`
}

// Records fetches one JSON array and yields every usable item.
type Records struct {
	cfg     RecordsConfig
	mapper  ItemMapper
	fetcher harvest.Fetcher
	timeout time.Duration
	logger  *zap.Logger
}

// NewRecords builds a record list discoverer.
func NewRecords(cfg RecordsConfig, mapper ItemMapper, fetcher harvest.Fetcher, timeout time.Duration, logger *zap.Logger) *Records {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Records{cfg: cfg, mapper: mapper, fetcher: fetcher, timeout: timeout, logger: logger}
}

// Name implements harvest.Discoverer.
func (r *Records) Name() string { return StrategyRecords }

// Discover implements harvest.Discoverer.
func (r *Records) Discover(ctx context.Context) iter.Seq2[harvest.RecordSource, error] {
	return func(yield func(harvest.RecordSource, error) bool) {
		resp, err := fetchOnce(ctx, r.fetcher, harvest.FetchRequest{
			URL:     r.cfg.URL,
			Method:  http.MethodGet,
			Headers: toHeader(r.cfg.Headers),
			Timeout: r.timeout,
		})
		if err != nil {
			yield(harvest.RecordSource{}, err)
			return
		}
		if !resp.OK() {
			r.logger.Warn("record list request rejected",
				zap.String("url", r.cfg.URL),
				zap.Int("status", resp.StatusCode),
			)
			return
		}
		doc, err := decodeJSON(resp.Body)
		if err != nil {
			yield(harvest.RecordSource{}, fmt.Errorf("record list: %w", err))
			return
		}
		for _, item := range listAt(doc, r.cfg.ResultsPath) {
			source, ok := r.mapper.Source(item)
			if !ok {
				continue
			}
			if !yield(source, nil) {
				return
			}
		}
	}
}
