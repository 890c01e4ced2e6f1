package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/courthouse-harvester/internal/discovery"
	"github.com/JakeFAU/courthouse-harvester/internal/extract"
	collyfetcher "github.com/JakeFAU/courthouse-harvester/internal/fetcher/colly"
	restyfetcher "github.com/JakeFAU/courthouse-harvester/internal/fetcher/resty"
	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
	"github.com/JakeFAU/courthouse-harvester/internal/normalize"
	"github.com/JakeFAU/courthouse-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/courthouse-harvester/internal/worker"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixedIDs struct {
	id  string
	err error
}

func (f fixedIDs) NewID() (string, error) { return f.id, f.err }

// scriptedDiscoverer yields its sources in order, then err if set.
type scriptedDiscoverer struct {
	sources []harvest.RecordSource
	err     error
	onYield func(i int)
}

func (d *scriptedDiscoverer) Name() string { return "scripted" }

func (d *scriptedDiscoverer) Discover(context.Context) iter.Seq2[harvest.RecordSource, error] {
	return func(yield func(harvest.RecordSource, error) bool) {
		for i, src := range d.sources {
			if d.onYield != nil {
				d.onYield(i)
			}
			if !yield(src, nil) {
				return
			}
		}
		if d.err != nil {
			yield(harvest.RecordSource{}, d.err)
		}
	}
}

type countingLimiter struct {
	calls atomic.Int32
}

func (l *countingLimiter) Wait(context.Context, string) error {
	l.calls.Add(1)
	return nil
}

type okFetcher struct{}

func (okFetcher) Fetch(_ context.Context, req harvest.FetchRequest) (harvest.FetchResponse, error) {
	return harvest.FetchResponse{URL: req.URL, StatusCode: http.StatusOK, Body: []byte("<h1>Court</h1>")}, nil
}

func baseDeps(d harvest.Discoverer) Dependencies {
	return Dependencies{
		Discoverer: d,
		Fetcher:    okFetcher{},
		Extractor:  extract.Default(extract.DefaultSelectors(), nil, nil),
		Normalizer: normalize.New(),
		Retry:      harvest.NewExponentialRetryPolicy(2, time.Millisecond, time.Millisecond),
		Pauser:     harvest.TimerPauser{},
		Clock:      &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		IDs:        fixedIDs{id: "run-1"},
	}
}

func inline(name, address string) harvest.RecordSource {
	return harvest.InlineSource(harvest.RawRecord{Name: name, City: name, Address: address})
}

func TestRunListingModeFromSearchAPI(t *testing.T) {
	t.Parallel()

	router := chi.NewRouter()
	router.Get("/api/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = io.WriteString(w, `{"results":[
				{"title":"Ottawa","address":{"address_line":"161 Elgin Street, Ottawa"}},
				{"title":"Milton","address":{"address_line":"491 Steeles Avenue East, Milton"}}
			],"next_page_url":"/api/search?page=2"}`)
		case "2":
			_, _ = io.WriteString(w, `{"results":[
				{"title":"Ottawa","address":{"address_line":"2 Daly Avenue, Ottawa"}},
				{"title":"Ottawa","address":{"address_line":"161 Elgin Street, Ottawa"}}
			],"next_page_url":"/api/search?page=3"}`)
		default:
			_, _ = io.WriteString(w, `{"results":[]}`)
		}
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	api := restyfetcher.New(restyfetcher.Config{Timeout: time.Second})
	disc, err := discovery.New(discovery.Config{
		Strategy: discovery.StrategyREST,
		REST:     discovery.RESTConfig{URL: srv.URL + "/api/search", StartPage: 1},
	}, discovery.Dependencies{Mode: harvest.ModeListing, HTML: api, API: api, Timeout: time.Second})
	require.NoError(t, err)

	h := New(baseDeps(disc), Config{Mode: harvest.ModeListing}, worker.Config{}, nil)
	result, err := h.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, "run-1", result.RunID)
	require.Equal(t, discovery.StrategyREST, result.Strategy)
	require.Equal(t, 4, result.Sources)
	require.Equal(t, 3, result.Records)
	require.True(t, result.FinishedAt.After(result.StartedAt))

	out, err := json.Marshal(result.Dataset)
	require.NoError(t, err)
	require.JSONEq(t, `[
		{"city":"Milton","address":"491 Steeles Avenue East, Milton"},
		{"city":"Ottawa (161 Elgin Street)","address":"161 Elgin Street, Ottawa"},
		{"city":"Ottawa (2 Daly Avenue)","address":"2 Daly Avenue, Ottawa"}
	]`, string(out))
}

func TestRunDetailModeKeepsDiscoveryOrderUnderConcurrency(t *testing.T) {
	t.Parallel()

	slugs := []string{"brampton", "missing", "milton", "broken", "ottawa", "toronto", "barrie", "sudbury", "windsor", "kingston"}
	var brokenHits atomic.Int32

	router := chi.NewRouter()
	router.Get("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
		for _, slug := range slugs {
			fmt.Fprintf(&b, "<url><loc>http://%s/courts/%s</loc></url>", r.Host, slug)
		}
		b.WriteString(`<url><loc>http://` + r.Host + `/about</loc></url></urlset>`)
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, b.String())
	})
	router.Get("/courts/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	router.Get("/courts/broken", func(http.ResponseWriter, *http.Request) {
		brokenHits.Add(1)
		panic(http.ErrAbortHandler)
	})
	router.Get("/courts/{slug}", func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		// Later pages answer faster so completion order differs from discovery order.
		idx := 0
		for i, s := range slugs {
			if s == slug {
				idx = i
			}
		}
		time.Sleep(time.Duration(len(slugs)-idx) * 3 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><head><script type="application/ld+json">
			{"@type":"Courthouse","name":"%s Courthouse","telephone":"555-0100"}
		</script></head><body><h1>ignored</h1></body></html>`, strings.ToUpper(slug[:1])+slug[1:])
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	html := collyfetcher.New(collyfetcher.Config{Timeout: 2 * time.Second})
	disc, err := discovery.New(discovery.Config{
		Strategy: discovery.StrategySitemap,
		Sitemap:  discovery.SitemapConfig{URL: srv.URL + "/sitemap.xml"},
	}, discovery.Dependencies{Mode: harvest.ModeDetail, HTML: html, API: html, Timeout: time.Second})
	require.NoError(t, err)

	deps := baseDeps(disc)
	deps.Fetcher = html
	deps.Limiter = ratelimit.New(ratelimit.FromDelay(time.Millisecond))
	h := New(deps, Config{Mode: harvest.ModeDetail, Concurrency: 4, QueueDepth: 2}, worker.Config{FetchTimeout: 2 * time.Second}, nil)

	result, err := h.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, len(slugs), result.Sources)

	var names, urls []string
	for _, rec := range result.Dataset.Records {
		names = append(names, rec.Name)
		urls = append(urls, rec.URL)
		assert.Equal(t, "555-0100", rec.Phone)
	}
	require.Equal(t, []string{
		"Brampton Courthouse", "Milton Courthouse", "Ottawa Courthouse", "Toronto Courthouse",
		"Barrie Courthouse", "Sudbury Courthouse", "Windsor Courthouse", "Kingston Courthouse",
	}, names)
	require.Equal(t, srv.URL+"/courts/brampton", urls[0])
	// Two attempts; the transport may replay a GET once on a reused connection.
	require.GreaterOrEqual(t, brokenHits.Load(), int32(2))
}

func TestRunNoSources(t *testing.T) {
	t.Parallel()

	h := New(baseDeps(&scriptedDiscoverer{}), Config{Mode: harvest.ModeDetail}, worker.Config{}, nil)
	result, err := h.Run(context.Background())
	require.ErrorIs(t, err, harvest.ErrNoSources)
	require.Equal(t, "run-1", result.RunID)
	require.Zero(t, result.Sources)

	out, err := json.Marshal(result.Dataset)
	require.NoError(t, err)
	require.Equal(t, "[]", string(out))
}

func TestRunNoSourcesKeepsDiscoveryError(t *testing.T) {
	t.Parallel()

	boom := errors.New("dial tcp: connection refused")
	h := New(baseDeps(&scriptedDiscoverer{err: boom}), Config{}, worker.Config{}, nil)
	_, err := h.Run(context.Background())
	require.ErrorIs(t, err, harvest.ErrNoSources)
	require.ErrorIs(t, err, boom)
}

func TestRunKeepsSourcesFoundBeforeDiscoveryError(t *testing.T) {
	t.Parallel()

	disc := &scriptedDiscoverer{
		sources: []harvest.RecordSource{
			inline("Ottawa", "161 Elgin Street, Ottawa"),
			inline("Milton", "491 Steeles Avenue East, Milton"),
		},
		err: errors.New("page 2: connection reset"),
	}
	h := New(baseDeps(disc), Config{Mode: harvest.ModeListing}, worker.Config{}, nil)
	result, err := h.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.Sources)
	require.Equal(t, 2, result.Records)
	require.Equal(t, "Milton", result.Dataset.Records[0].City)
}

func TestRunCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sources := make([]harvest.RecordSource, 50)
	for i := range sources {
		sources[i] = inline(fmt.Sprintf("City %02d", i), fmt.Sprintf("%d Main Street", i))
	}
	disc := &scriptedDiscoverer{
		sources: sources,
		onYield: func(i int) {
			if i == 3 {
				cancel()
			}
		},
	}
	h := New(baseDeps(disc), Config{Mode: harvest.ModeListing}, worker.Config{}, nil)
	result, err := h.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.LessOrEqual(t, result.Records, result.Sources)
	require.False(t, result.FinishedAt.IsZero())
}

func TestRunIDFailure(t *testing.T) {
	t.Parallel()

	deps := baseDeps(&scriptedDiscoverer{})
	deps.IDs = fixedIDs{err: errors.New("entropy exhausted")}
	_, err := New(deps, Config{}, worker.Config{}, nil).Run(context.Background())
	require.ErrorContains(t, err, "generate run id")
}

func TestLimiterOnlyUsedWhenConcurrent(t *testing.T) {
	t.Parallel()

	urls := []harvest.RecordSource{
		harvest.URLSource("https://example.org/courts/a"),
		harvest.URLSource("https://example.org/courts/b"),
		harvest.URLSource("https://example.org/courts/c"),
	}

	for _, tc := range []struct {
		concurrency int
		want        int32
	}{
		{concurrency: 1, want: 0},
		{concurrency: 3, want: 3},
	} {
		limiter := &countingLimiter{}
		deps := baseDeps(&scriptedDiscoverer{sources: urls})
		deps.Limiter = limiter
		result, err := New(deps, Config{Mode: harvest.ModeDetail, Concurrency: tc.concurrency}, worker.Config{}, nil).
			Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 3, result.Records)
		require.Equal(t, tc.want, limiter.calls.Load(), "concurrency %d", tc.concurrency)
	}
}
