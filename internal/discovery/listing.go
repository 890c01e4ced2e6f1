package discovery

import (
	"bytes"
	"context"
	"iter"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/courthouse-harvester/internal/extract"
	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
	"github.com/JakeFAU/courthouse-harvester/internal/urlutil"
)

const defaultListingMaxPages = 50

// ListingConfig describes a paginated HTML listing.
type ListingConfig struct {
	// URLTemplate contains {page}, replaced by the page number.
	URLTemplate string `mapstructure:"url_template"`
	StartPage   int    `mapstructure:"start_page"`
	MaxPages    int    `mapstructure:"max_pages"`
	// ItemSelector matches the links to detail pages. When it is empty the
	// raw page is scanned for detail URLs instead. A configured selector
	// that matches nothing marks the page as empty.
	ItemSelector string `mapstructure:"item_selector"`
	NextSelector string `mapstructure:"next_selector"`
}

// Listing walks listing pages until one comes back empty or non-2xx.
type Listing struct {
	cfg     ListingConfig
	pattern *regexp.Regexp
	fetcher harvest.Fetcher
	timeout time.Duration
	logger  *zap.Logger
}

// NewListing builds a listing discoverer.
func NewListing(cfg ListingConfig, pattern *regexp.Regexp, fetcher harvest.Fetcher, timeout time.Duration, logger *zap.Logger) *Listing {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultListingMaxPages
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listing{cfg: cfg, pattern: pattern, fetcher: fetcher, timeout: timeout, logger: logger}
}

// Name implements harvest.Discoverer.
func (l *Listing) Name() string { return StrategyListing }

// Discover implements harvest.Discoverer.
func (l *Listing) Discover(ctx context.Context) iter.Seq2[harvest.RecordSource, error] {
	return func(yield func(harvest.RecordSource, error) bool) {
		next := urlutil.ExpandPage(l.cfg.URLTemplate, l.cfg.StartPage)
		visited := make(map[string]struct{})

		for page := 0; page < l.cfg.MaxPages && next != ""; page++ {
			pageURL := next
			visited[pageURL] = struct{}{}

			resp, err := fetchOnce(ctx, l.fetcher, harvest.FetchRequest{URL: pageURL, Timeout: l.timeout})
			if err != nil {
				yield(harvest.RecordSource{}, err)
				return
			}
			if !resp.OK() {
				l.logger.Info("listing ended on status",
					zap.String("url", pageURL),
					zap.Int("status", resp.StatusCode),
				)
				return
			}

			base := resp.URL
			if base == "" {
				base = pageURL
			}
			doc, items := l.items(resp.Body, base)
			if len(items) == 0 {
				l.logger.Info("listing ended on empty page", zap.String("url", pageURL))
				return
			}
			for _, item := range items {
				if !yield(harvest.URLSource(item), nil) {
					return
				}
			}
			next = l.nextPage(doc, base, l.cfg.StartPage+page+1, visited)
		}
	}
}

func (l *Listing) items(body []byte, base string) (*goquery.Document, []string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		l.logger.Debug("listing page parse failed", zap.String("url", base), zap.Error(err))
		return nil, extract.ScanDetailURLs(body, base, l.pattern)
	}
	if l.cfg.ItemSelector == "" {
		return doc, extract.ScanDetailURLs(body, base, l.pattern)
	}
	var items []string
	doc.Find(l.cfg.ItemSelector).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if resolved, ok := urlutil.Resolve(base, href); ok {
			items = append(items, resolved)
		}
	})
	return doc, items
}

// nextPage prefers the page's own next link and falls back to the template
// with index+1. Pages already fetched are never requested again.
func (l *Listing) nextPage(doc *goquery.Document, base string, index int, visited map[string]struct{}) string {
	if doc != nil && l.cfg.NextSelector != "" {
		href, _ := doc.Find(l.cfg.NextSelector).First().Attr("href")
		if resolved, ok := urlutil.Resolve(base, href); ok {
			if _, seen := visited[resolved]; !seen {
				return resolved
			}
		}
	}
	candidate := urlutil.ExpandPage(l.cfg.URLTemplate, index)
	if _, seen := visited[candidate]; seen {
		return ""
	}
	return candidate
}
