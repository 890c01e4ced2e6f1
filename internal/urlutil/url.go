// Package urlutil holds the small URL helpers shared by discovery and
// extraction.
package urlutil

import (
	"net/url"
	"strconv"
	"strings"
)

// PagePlaceholder is replaced by the page number in listing URL templates.
const PagePlaceholder = "{page}"

// Resolve turns ref into an absolute URL against base and strips the
// fragment. Empty refs, fragment-only refs and javascript:/mailto:/tel:
// links are rejected.
func Resolve(base, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", false
	}
	lower := strings.ToLower(ref)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:"} {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if base != "" {
		if baseURL, err := url.Parse(base); err == nil {
			refURL = baseURL.ResolveReference(refURL)
		}
	}
	refURL.Fragment = ""
	return refURL.String(), true
}

// Host returns the lowercased host name of raw, or "unknown".
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ExpandPage substitutes page into a listing URL template.
func ExpandPage(template string, page int) string {
	return strings.ReplaceAll(template, PagePlaceholder, strconv.Itoa(page))
}

// WithQuery returns raw with the given query parameters set. Existing
// parameters with the same name are replaced.
func WithQuery(raw string, params map[string]string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for key, value := range params {
		q.Set(key, value)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
