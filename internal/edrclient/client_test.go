package edrclient

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"
)

func newTestBuilder(t *testing.T, opt Options, seed int64) *RequestBuilder {
	t.Helper()
	b, err := NewRequestBuilder(opt, seed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return b
}

func TestNewRequestBuilderValidation(t *testing.T) {
	cases := []struct {
		name string
		opt  Options
	}{
		{"empty endpoint", Options{Collection: "metar-all"}},
		{"bad scheme", Options{BaseURL: "ftp://example.com/edr", Collection: "metar-all"}},
		{"missing collection", Options{BaseURL: "https://example.com/edr"}},
		{"bad time mode", Options{BaseURL: "https://example.com/edr", Collection: "metar-all", TimeMode: "range"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewRequestBuilder(tc.opt, 1); err == nil {
				t.Fatal("expected an error")
			}
		})
	}

	// Trivial mode needs no collection.
	if _, err := NewRequestBuilder(Options{BaseURL: "https://example.com/edr", Trivial: true}, 1); err != nil {
		t.Fatalf("trivial mode rejected: %v", err)
	}
}

func TestBuildLocationQuery(t *testing.T) {
	b := newTestBuilder(t, Options{
		BaseURL:    "https://example.com:8444/edr/",
		Collection: "metar-all",
		TimeMode:   TimeModeNone,
	}, 1)

	req, err := b.Build(context.Background(), []string{"EGLL"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://example.com:8444/edr/collections/metar-all/locations/EGLL"
	if req.URL.String() != want {
		t.Fatalf("url = %s, want %s", req.URL, want)
	}
	if req.Method != http.MethodGet {
		t.Fatalf("method = %s, want GET", req.Method)
	}
}

func TestBuildJoinsMultipleLocations(t *testing.T) {
	b := newTestBuilder(t, Options{
		BaseURL:    "https://example.com/edr",
		Collection: "metar-all",
		TimeMode:   TimeModeNone,
	}, 1)

	req, err := b.Build(context.Background(), []string{"EGLL", "KJFK", "LFPG"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(req.URL.Path, "/locations/EGLL,KJFK,LFPG") {
		t.Fatalf("path %s does not join locations with commas", req.URL.Path)
	}
}

func TestBuildRequiresLocations(t *testing.T) {
	b := newTestBuilder(t, Options{
		BaseURL:    "https://example.com/edr",
		Collection: "metar-all",
	}, 1)
	if _, err := b.Build(context.Background(), nil); err == nil {
		t.Fatal("expected an error for a draw with no locations")
	}
}

func TestBuildSingleTimeModeAddsDatetime(t *testing.T) {
	b := newTestBuilder(t, Options{
		BaseURL:      "https://example.com/edr",
		Collection:   "metar-all",
		TimeMode:     TimeModeSingle,
		MaxHoursBack: 48,
	}, 42)

	req, err := b.Build(context.Background(), []string{"EGLL"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	datetime := req.URL.Query().Get("datetime")
	if datetime == "" {
		t.Fatal("single time mode must add a datetime parameter")
	}
	if matched, _ := regexp.MatchString(`^\d{4}-\d{2}-\d{2}T\d{2}:00$`, datetime); !matched {
		t.Fatalf("datetime %q is not a whole-hour ISO timestamp", datetime)
	}
}

func TestRandomDatetimeWindow(t *testing.T) {
	b := newTestBuilder(t, Options{
		BaseURL:      "https://example.com/edr",
		Collection:   "metar-all",
		TimeMode:     TimeModeSingle,
		MaxHoursBack: 48,
	}, 7)
	fixed := time.Date(2026, 8, 23, 14, 30, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	earliest := fixed.Truncate(time.Hour).Add(-48 * time.Hour)
	latest := fixed.Truncate(time.Hour).Add(-1 * time.Hour)
	for i := 0; i < 500; i++ {
		got, err := time.Parse("2006-01-02T15:04", b.randomDatetime())
		if err != nil {
			t.Fatalf("unparseable datetime: %v", err)
		}
		if got.Before(earliest) || got.After(latest) {
			t.Fatalf("datetime %s outside [%s, %s]", got, earliest, latest)
		}
		if got.Minute() != 0 {
			t.Fatalf("datetime %s is not on a whole hour", got)
		}
	}
}

func TestBuildTrivialMode(t *testing.T) {
	b := newTestBuilder(t, Options{
		BaseURL: "https://example.com/edr",
		Trivial: true,
	}, 1)

	req, err := b.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.URL.String() != "https://example.com/edr" {
		t.Fatalf("trivial url = %s, want the bare base endpoint", req.URL)
	}
}

func TestBuildBasicAuthHeader(t *testing.T) {
	b := newTestBuilder(t, Options{
		BaseURL:    "https://example.com/edr",
		Collection: "metar-all",
		Username:   "observer",
		Password:   "s3cret",
	}, 1)

	req, err := b.Build(context.Background(), []string{"EGLL"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("observer:s3cret"))
	if got := req.Header.Get("Authorization"); got != want {
		t.Fatalf("auth header = %q, want %q", got, want)
	}
}

func TestBuildNoAuthHeaderWithoutCredentials(t *testing.T) {
	b := newTestBuilder(t, Options{
		BaseURL:    "https://example.com/edr",
		Collection: "metar-all",
	}, 1)
	req, _ := b.Build(context.Background(), []string{"EGLL"})
	if got := req.Header.Get("Authorization"); got != "" {
		t.Fatalf("unexpected auth header %q", got)
	}
}

func TestClientAgainstLiveServer(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := newTestBuilder(t, Options{
		BaseURL:    srv.URL,
		Collection: "metar-all",
		TimeMode:   TimeModeNone,
	}, 1)
	client := NewHTTPClient(Options{Timeout: 5 * time.Second, MaxConns: 2})

	req, err := b.Build(context.Background(), []string{"EGLL"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if gotPath != "/collections/metar-all/locations/EGLL" {
		t.Fatalf("server saw path %q", gotPath)
	}
}
