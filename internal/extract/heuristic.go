package extract

import (
	"fmt"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
	"github.com/JakeFAU/courthouse-harvester/internal/urlutil"
)

// DefaultDetailPattern matches facility detail page URLs.
const DefaultDetailPattern = `(?i)/(?:courts?|courthouses?|locations?)/[a-z0-9][a-z0-9-]*/?$`

var (
	streetLine = regexp.MustCompile(`(?i)\b\d+[a-z]?\s+(?:[\w.'-]+\s+){1,4}` +
		`(?:street|st|avenue|ave|road|rd|boulevard|blvd|drive|dr|lane|ln|way|crescent|cres|` +
		`court|ct|place|pl|square|sq|parkway|pkwy|highway|hwy)\b`)
	postalCode  = regexp.MustCompile(`\b[A-Z]\d[A-Z] ?\d[A-Z]\d\b`)
	emailToken  = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	hrefAttr    = regexp.MustCompile(`(?i)href\s*=\s*["']([^"']+)["']`)
	absoluteURL = regexp.MustCompile(`https?://[^\s"'<>]+`)
)

// CompileDetailPattern compiles raw, or DefaultDetailPattern when raw is
// empty.
func CompileDetailPattern(raw string) (*regexp.Regexp, error) {
	if raw == "" {
		raw = DefaultDetailPattern
	}
	re, err := regexp.Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("compile detail pattern: %w", err)
	}
	return re, nil
}

// Heuristic is the last resort tier: regular expressions over the page text.
type Heuristic struct {
	detail *regexp.Regexp
}

// NewHeuristic uses DefaultDetailPattern when detail is nil.
func NewHeuristic(detail *regexp.Regexp) *Heuristic {
	if detail == nil {
		detail = regexp.MustCompile(DefaultDetailPattern)
	}
	return &Heuristic{detail: detail}
}

// Name implements Tier.
func (*Heuristic) Name() string { return "heuristic" }

// Resolve implements Tier.
func (h *Heuristic) Resolve(doc *goquery.Document, raw []byte) (harvest.RawRecord, error) {
	var rec harvest.RawRecord
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	for _, line := range textLines(body) {
		if rec.Address == "" && (streetLine.MatchString(line) || postalCode.MatchString(line)) {
			rec.Address = line
		}
		if rec.Email == "" {
			rec.Email = emailToken.FindString(line)
		}
	}
	if urls := ScanDetailURLs(raw, "", h.detail); len(urls) > 0 {
		rec.URL = urls[0]
	}
	return rec, nil
}

// ScanDetailURLs finds detail page URLs in raw markup without parsing it:
// href attributes first, then bare absolute URLs. Results are resolved
// against base, filtered by pattern and deduplicated in order of
// appearance.
func ScanDetailURLs(raw []byte, base string, pattern *regexp.Regexp) []string {
	if pattern == nil {
		pattern = regexp.MustCompile(DefaultDetailPattern)
	}
	var out []string
	seen := make(map[string]struct{})
	add := func(ref string) {
		resolved, ok := urlutil.Resolve(base, html.UnescapeString(ref))
		if !ok || !pattern.MatchString(resolved) {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		out = append(out, resolved)
	}
	for _, match := range hrefAttr.FindAllSubmatch(raw, -1) {
		add(string(match[1]))
	}
	for _, match := range absoluteURL.FindAll(raw, -1) {
		add(string(match))
	}
	return out
}
