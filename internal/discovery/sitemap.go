package discovery

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"regexp"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
)

// SitemapConfig points at a sitemap or sitemap index document.
type SitemapConfig struct {
	URL string `mapstructure:"url"`
}

// Sitemap yields detail page URLs listed in a sitemap. A sitemap index is
// expanded one level deep, child sitemaps in index order.
type Sitemap struct {
	cfg     SitemapConfig
	pattern *regexp.Regexp
	fetcher harvest.Fetcher
	timeout time.Duration
	logger  *zap.Logger
}

// NewSitemap builds a sitemap discoverer. Only URLs matching pattern are
// yielded.
func NewSitemap(cfg SitemapConfig, pattern *regexp.Regexp, fetcher harvest.Fetcher, timeout time.Duration, logger *zap.Logger) *Sitemap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sitemap{cfg: cfg, pattern: pattern, fetcher: fetcher, timeout: timeout, logger: logger}
}

// Name implements harvest.Discoverer.
func (s *Sitemap) Name() string { return StrategySitemap }

// Discover implements harvest.Discoverer.
func (s *Sitemap) Discover(ctx context.Context) iter.Seq2[harvest.RecordSource, error] {
	return func(yield func(harvest.RecordSource, error) bool) {
		doc, err := s.load(ctx, s.cfg.URL)
		if err != nil {
			yield(harvest.RecordSource{}, err)
			return
		}
		if doc == nil {
			return
		}

		seen := make(map[string]struct{})
		emit := func(locs []string) bool {
			for _, loc := range locs {
				if !s.pattern.MatchString(loc) {
					continue
				}
				if _, dup := seen[loc]; dup {
					continue
				}
				seen[loc] = struct{}{}
				if !yield(harvest.URLSource(loc), nil) {
					return false
				}
			}
			return true
		}

		if xmlquery.FindOne(doc, "//sitemapindex") == nil {
			emit(locations(doc))
			return
		}
		for _, child := range locations(doc) {
			childDoc, err := s.load(ctx, child)
			if err != nil {
				yield(harvest.RecordSource{}, err)
				return
			}
			if childDoc == nil {
				continue
			}
			if !emit(locations(childDoc)) {
				return
			}
		}
	}
}

// load fetches and parses one document. A nil document with a nil error
// means the server answered with a non-2xx status.
func (s *Sitemap) load(ctx context.Context, url string) (*xmlquery.Node, error) {
	resp, err := fetchOnce(ctx, s.fetcher, harvest.FetchRequest{URL: url, Timeout: s.timeout})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		s.logger.Warn("sitemap request rejected",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
		)
		return nil, nil
	}
	doc, err := xmlquery.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", url, err)
	}
	return doc, nil
}

func locations(doc *xmlquery.Node) []string {
	nodes := xmlquery.Find(doc, "//loc")
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if loc := strings.TrimSpace(n.InnerText()); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}
