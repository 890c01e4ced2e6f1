package harvest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Mode selects the shape of the emitted dataset.
type Mode string

// Supported pipeline modes. A run never mixes the two.
const (
	ModeListing Mode = "listing"
	ModeDetail  Mode = "detail"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeListing:
		return ModeListing, nil
	case ModeDetail:
		return ModeDetail, nil
	default:
		return "", fmt.Errorf("unknown mode %q", raw)
	}
}

// RawRecord is the field-level representation of one facility before
// normalization. Every field is optional.
type RawRecord struct {
	Name    string
	URL     string
	Address string
	City    string
	Phone   string
	Fax     string
	Email   string
}

// Usable reports whether the record carries a name or a city. Records that
// fail this test are dropped.
func (r RawRecord) Usable() bool {
	return strings.TrimSpace(r.Name) != "" || strings.TrimSpace(r.City) != ""
}

// Empty reports whether no field at all was identified.
func (r RawRecord) Empty() bool {
	return r == RawRecord{}
}

// Merge returns a copy of r where every empty field is filled from other.
// Fields already set in r always win.
func (r RawRecord) Merge(other RawRecord) RawRecord {
	out := r
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&out.Name, other.Name)
	fill(&out.URL, other.URL)
	fill(&out.Address, other.Address)
	fill(&out.City, other.City)
	fill(&out.Phone, other.Phone)
	fill(&out.Fax, other.Fax)
	fill(&out.Email, other.Email)
	return out
}

// RecordSource points at a detail page, or carries a record already fully
// known from a listing/API response.
type RecordSource struct {
	URL    string
	Inline *RawRecord
}

// URLSource builds a source that requires a fetch and extraction.
func URLSource(url string) RecordSource {
	return RecordSource{URL: url}
}

// InlineSource builds a source that bypasses fetch and extraction.
func InlineSource(rec RawRecord) RecordSource {
	return RecordSource{URL: rec.URL, Inline: &rec}
}

// IsInline reports whether the source already carries its record.
func (s RecordSource) IsInline() bool {
	return s.Inline != nil
}

// Kind labels the source for logs and metrics.
func (s RecordSource) Kind() string {
	if s.IsInline() {
		return "inline"
	}
	return "url"
}

// Job wraps a discovered source with its discovery position.
type Job struct {
	Index  int
	Source RecordSource
}

// FetchRequest captures everything needed to issue one HTTP request.
type FetchRequest struct {
	URL     string
	Method  string
	Headers http.Header
	Body    []byte
	Timeout time.Duration
}

// FetchResponse is returned for every request that reached the server,
// whatever its status code.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// OK reports whether the response carries a 2xx status.
func (r FetchResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Page is one fetched detail page handed to an Extractor.
type Page struct {
	URL  string
	Body []byte
}

// CanonicalRecord is the disambiguated, output-ready representation.
type CanonicalRecord struct {
	City    string
	Name    string
	URL     string
	Address string
	Phone   string
	Fax     string
	Email   string
}

// Dataset is the ordered output of a run. It is built once by the normalizer.
type Dataset struct {
	Mode    Mode
	Records []CanonicalRecord
}

// Len returns the number of records in the dataset.
func (d Dataset) Len() int {
	return len(d.Records)
}

type listingJSON struct {
	City    string `json:"city"`
	Address string `json:"address"`
}

type detailJSON struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Fax     string `json:"fax"`
	Email   string `json:"email"`
}

// MarshalJSON encodes the dataset as a JSON array whose object shape
// depends on the mode. An empty dataset encodes as [].
func (d Dataset) MarshalJSON() ([]byte, error) {
	if d.Mode == ModeDetail {
		out := make([]detailJSON, 0, len(d.Records))
		for _, r := range d.Records {
			out = append(out, detailJSON{
				Name:    r.Name,
				URL:     r.URL,
				Address: r.Address,
				Phone:   r.Phone,
				Fax:     r.Fax,
				Email:   r.Email,
			})
		}
		return encodeUnescaped(out)
	}
	out := make([]listingJSON, 0, len(d.Records))
	for _, r := range d.Records {
		out = append(out, listingJSON{City: r.City, Address: r.Address})
	}
	return encodeUnescaped(out)
}

func encodeUnescaped(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode dataset: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
