// Package normalize builds the final dataset from collected raw records.
package normalize

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
)

// Normalizer implements harvest.Normalizer.
type Normalizer struct{}

// New returns a Normalizer.
func New() Normalizer {
	return Normalizer{}
}

// Normalize dispatches on mode. Records that are not usable are dropped in
// both modes.
func (Normalizer) Normalize(mode harvest.Mode, records []harvest.RawRecord) harvest.Dataset {
	if mode == harvest.ModeDetail {
		return harvest.Dataset{Mode: mode, Records: detail(records)}
	}
	return harvest.Dataset{Mode: harvest.ModeListing, Records: listing(records)}
}

// listing groups records by city, disambiguates cities with more than one
// distinct address and sorts by city, then address.
func listing(records []harvest.RawRecord) []harvest.CanonicalRecord {
	var (
		order   []string
		grouped = make(map[string][]string)
	)
	for _, rec := range records {
		key := strings.TrimSpace(rec.City)
		if key == "" {
			key = strings.TrimSpace(rec.Name)
		}
		address := strings.TrimSpace(rec.Address)
		if key == "" || address == "" {
			continue
		}
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		if !slices.Contains(grouped[key], address) {
			grouped[key] = append(grouped[key], address)
		}
	}

	out := make([]harvest.CanonicalRecord, 0, len(records))
	for _, city := range order {
		addresses := grouped[city]
		if len(addresses) == 1 {
			out = append(out, harvest.CanonicalRecord{City: city, Address: addresses[0]})
			continue
		}
		for _, address := range addresses {
			out = append(out, harvest.CanonicalRecord{
				City:    fmt.Sprintf("%s (%s)", city, Street(address)),
				Address: address,
			})
		}
	}
	slices.SortStableFunc(out, func(a, b harvest.CanonicalRecord) int {
		return cmp.Or(strings.Compare(a.City, b.City), strings.Compare(a.Address, b.Address))
	})
	return out
}

// Street returns the disambiguation token for an address: the text before
// the first comma, or the whole address when it has no comma.
func Street(address string) string {
	street, _, _ := strings.Cut(address, ",")
	return strings.TrimSpace(street)
}

// detail keeps one record per URL, first occurrence wins, in discovery
// order. Records without a URL are never merged.
func detail(records []harvest.RawRecord) []harvest.CanonicalRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]harvest.CanonicalRecord, 0, len(records))
	for _, rec := range records {
		if !rec.Usable() {
			continue
		}
		url := strings.TrimSpace(rec.URL)
		if url != "" {
			if _, dup := seen[url]; dup {
				continue
			}
			seen[url] = struct{}{}
		}
		out = append(out, harvest.CanonicalRecord{
			City:    strings.TrimSpace(rec.City),
			Name:    strings.TrimSpace(rec.Name),
			URL:     url,
			Address: strings.TrimSpace(rec.Address),
			Phone:   strings.TrimSpace(rec.Phone),
			Fax:     strings.TrimSpace(rec.Fax),
			Email:   strings.TrimSpace(rec.Email),
		})
	}
	return out
}
