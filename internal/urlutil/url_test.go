package urlutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		base string
		ref  string
		want string
		ok   bool
	}{
		{name: "relative", base: "https://example.org/courts?page=1", ref: "/courts/ottawa", want: "https://example.org/courts/ottawa", ok: true},
		{name: "absolute", base: "https://example.org/", ref: "https://other.org/a#top", want: "https://other.org/a", ok: true},
		{name: "no base", ref: "https://other.org/a", want: "https://other.org/a", ok: true},
		{name: "fragment only", base: "https://example.org/", ref: "#main"},
		{name: "mailto", base: "https://example.org/", ref: "mailto:clerk@example.org"},
		{name: "javascript", base: "https://example.org/", ref: "JavaScript:void(0)"},
		{name: "blank", base: "https://example.org/", ref: "  "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Resolve(tc.base, tc.ref)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestHost(t *testing.T) {
	t.Parallel()

	require.Equal(t, "www.ontario.ca", Host("https://WWW.Ontario.ca/api/search"))
	require.Equal(t, "unknown", Host("::not a url"))
	require.Equal(t, "unknown", Host("/relative/only"))
}

func TestExpandPage(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://example.org/courts?page=3", ExpandPage("https://example.org/courts?page={page}", 3))
	require.Equal(t, "https://example.org/courts", ExpandPage("https://example.org/courts", 3))
}

func TestWithQuery(t *testing.T) {
	t.Parallel()

	got, err := WithQuery("https://www.ontario.ca/api/search?page=9", map[string]string{
		"q":      "",
		"filter": "locations",
		"page":   "1",
	})
	require.NoError(t, err)
	require.Equal(t, "https://www.ontario.ca/api/search?filter=locations&page=1&q=", got)
}
