// Package extract turns fetched detail pages into raw facility records.
//
// A Chain runs an ordered list of tiers over one parsed document. Each tier
// resolves whatever fields it can; a field keeps the first non-empty value
// any tier produced, so fields may come from different tiers.
package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
)

// Tier resolves a partial record from a parsed page. An error means the
// tier could not read the page and the chain moves on.
type Tier interface {
	Name() string
	Resolve(doc *goquery.Document, raw []byte) (harvest.RawRecord, error)
}

// Chain implements harvest.Extractor over ordered tiers.
type Chain struct {
	tiers  []Tier
	logger *zap.Logger
}

// NewChain builds a chain that consults tiers in the given order.
func NewChain(logger *zap.Logger, tiers ...Tier) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{tiers: tiers, logger: logger}
}

// Default returns the structured → selector → heuristic chain.
func Default(selectors Selectors, detailPattern *regexp.Regexp, logger *zap.Logger) *Chain {
	return NewChain(logger,
		Structured{},
		NewSelector(selectors),
		NewHeuristic(detailPattern),
	)
}

// Extract runs every tier and merges the results field by field. If no tier
// names the facility the first h1 is used. The fetched page URL always wins
// over a URL found inside the page.
func (c *Chain) Extract(page harvest.Page) (harvest.RawRecord, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		c.logger.Debug("page parse failed", zap.String("url", page.URL), zap.Error(err))
		doc = goquery.NewDocumentFromNode(&html.Node{Type: html.DocumentNode})
	}

	var record harvest.RawRecord
	for _, tier := range c.tiers {
		part, err := tier.Resolve(doc, page.Body)
		if err != nil {
			c.logger.Debug("extraction tier skipped",
				zap.String("url", page.URL),
				zap.String("tier", tier.Name()),
				zap.Error(err),
			)
			continue
		}
		record = record.Merge(part)
	}
	if record.Name == "" {
		record.Name = clean(doc.Find("h1").First().Text())
	}
	if record.Empty() {
		return harvest.RawRecord{}, false
	}
	if page.URL != "" {
		record.URL = page.URL
	}
	return record, true
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
