package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
)

// Selectors names the markup landmarks read by the selector tier.
type Selectors struct {
	Title   string `mapstructure:"title"`
	Address string `mapstructure:"address"`
	Contact string `mapstructure:"contact"`
}

// DefaultSelectors matches the common facility page layouts.
func DefaultSelectors() Selectors {
	return Selectors{
		Title:   "h1",
		Address: "address, .address, .location-address",
		Contact: ".contact, .contact-info, .location-contact",
	}
}

// Selector reads fields from known markup landmarks.
type Selector struct {
	selectors Selectors
}

// NewSelector fills any blank selector from DefaultSelectors.
func NewSelector(s Selectors) *Selector {
	defaults := DefaultSelectors()
	if s.Title == "" {
		s.Title = defaults.Title
	}
	if s.Address == "" {
		s.Address = defaults.Address
	}
	if s.Contact == "" {
		s.Contact = defaults.Contact
	}
	return &Selector{selectors: s}
}

// Name implements Tier.
func (*Selector) Name() string { return "selector" }

// Resolve implements Tier.
func (s *Selector) Resolve(doc *goquery.Document, _ []byte) (harvest.RawRecord, error) {
	var rec harvest.RawRecord
	rec.Name = clean(doc.Find(s.selectors.Title).First().Text())
	if address := doc.Find(s.selectors.Address).First(); address.Length() > 0 {
		rec.Address = strings.Join(textLines(address), ", ")
	}
	rec.Phone, rec.Fax, rec.Email = classifyContact(textLines(doc.Find(s.selectors.Contact)))
	return rec, nil
}

// classifyContact sorts contact lines into phone, fax and e-mail. The first
// line of each kind wins.
func classifyContact(lines []string) (phone, fax, email string) {
	for _, line := range lines {
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "tel") || strings.HasPrefix(lower, "phone"):
			if phone == "" {
				phone = stripLabel(line)
			}
		case strings.HasPrefix(lower, "fax"):
			if fax == "" {
				fax = stripLabel(line)
			}
		case strings.Contains(line, "@"):
			if email == "" {
				email = stripLabel(line)
			}
		}
	}
	return phone, fax, email
}

// bareLabel matches a leading contact label written without a colon.
var bareLabel = regexp.MustCompile(`(?i)^(?:telephone|tel|phone|fax)\.?\s+`)

func stripLabel(line string) string {
	if _, value, ok := strings.Cut(line, ":"); ok {
		return strings.TrimSpace(value)
	}
	line = strings.TrimSpace(line)
	return bareLabel.ReplaceAllString(line, "")
}
