package extract

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/titanous/json5"

	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
)

// ErrNoStructuredData is returned when a page carries no usable JSON-LD block.
var ErrNoStructuredData = errors.New("no structured data block")

const structuredSelector = `script[type="application/ld+json"]`

// Structured reads schema.org style JSON-LD blocks.
type Structured struct{}

// Name implements Tier.
func (Structured) Name() string { return "structured" }

// Resolve implements Tier. Blocks are tried in document order; a block that
// fails to decode, strictly or leniently, is skipped.
func (Structured) Resolve(doc *goquery.Document, _ []byte) (harvest.RawRecord, error) {
	var (
		record harvest.RawRecord
		found  bool
	)
	doc.Find(structuredSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		value, err := decodeBlock(s.Text())
		if err != nil {
			return true
		}
		for _, candidate := range candidates(value) {
			if rec := mapStructured(candidate); !rec.Empty() {
				record, found = rec, true
				return false
			}
		}
		return true
	})
	if !found {
		return harvest.RawRecord{}, ErrNoStructuredData
	}
	return record, nil
}

func decodeBlock(text string) (any, error) {
	data := []byte(strings.TrimSpace(text))
	var value any
	if err := json.Unmarshal(data, &value); err == nil {
		return value, nil
	}
	if err := json5.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return value, nil
}

// candidates flattens a decoded block into objects: the object itself,
// array elements and @graph members, in order.
func candidates(value any) []map[string]any {
	var out []map[string]any
	switch v := value.(type) {
	case map[string]any:
		out = append(out, v)
		if graph, ok := v["@graph"]; ok {
			out = append(out, candidates(graph)...)
		}
	case []any:
		for _, item := range v {
			out = append(out, candidates(item)...)
		}
	}
	return out
}

func mapStructured(obj map[string]any) harvest.RawRecord {
	rec := harvest.RawRecord{
		Name:  scalar(obj["name"]),
		Phone: scalar(obj["telephone"]),
		Fax:   scalar(obj["faxNumber"]),
		Email: stripMailto(scalar(obj["email"])),
		URL:   scalar(obj["url"]),
	}
	if rec.Name == "" {
		rec.Name = scalar(obj["title"])
	}
	rec.Address, rec.City = structuredAddress(obj["address"])
	return rec
}

func structuredAddress(value any) (address, city string) {
	switch v := value.(type) {
	case string:
		return clean(v), ""
	case []any:
		if len(v) > 0 {
			return structuredAddress(v[0])
		}
	case map[string]any:
		city = scalar(v["addressLocality"])
		parts := make([]string, 0, 4)
		for _, key := range []string{"streetAddress", "addressLocality", "addressRegion", "postalCode"} {
			if part := scalar(v[key]); part != "" {
				parts = append(parts, part)
			}
		}
		return strings.Join(parts, ", "), city
	}
	return "", ""
}

func scalar(value any) string {
	switch v := value.(type) {
	case string:
		return clean(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		for _, item := range v {
			if s := scalar(item); s != "" {
				return s
			}
		}
	}
	return ""
}

func stripMailto(s string) string {
	if len(s) >= len("mailto:") && strings.EqualFold(s[:len("mailto:")], "mailto:") {
		return strings.TrimSpace(s[len("mailto:"):])
	}
	return s
}
