package edrclient

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// TimeMode selects how the temporal dimension of a query is expressed.
type TimeMode string

const (
	// TimeModeSingle appends a datetime parameter with a random historical
	// whole hour.
	TimeModeSingle TimeMode = "single"
	// TimeModeNone omits the datetime parameter, querying latest data.
	TimeModeNone TimeMode = "none"
)

// Options describe the target EDR service and request shape.
type Options struct {
	BaseURL      string
	Collection   string
	Username     string
	Password     string
	TimeMode     TimeMode
	Trivial      bool // request the bare base endpoint, no collection path or parameters
	MaxHoursBack int  // datetime randomization window, whole hours
	Timeout      time.Duration
	MaxConns     int
	Insecure     bool // skip TLS certificate verification
	ForceClose   bool // disable keep-alive, one connection per request
}

const defaultMaxHoursBack = 48

// NewHTTPClient builds an http.Client tuned for sustained load generation.
// The TLS verification policy and keep-alive behavior are fixed here, once,
// for the whole run.
func NewHTTPClient(opt Options) *http.Client {
	timeout := opt.Timeout
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableKeepAlives:     opt.ForceClose,
	}
	if opt.MaxConns > 0 {
		transport.MaxConnsPerHost = opt.MaxConns
		transport.MaxIdleConnsPerHost = opt.MaxConns
	}
	if opt.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// RequestBuilder constructs EDR queries for one collection. Safe for
// concurrent use.
type RequestBuilder struct {
	base         string
	collection   string
	authHeader   string
	timeMode     TimeMode
	trivial      bool
	maxHoursBack int

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewRequestBuilder validates the target options and prepares a builder.
// The seed drives datetime randomization so runs are reproducible.
func NewRequestBuilder(opt Options, seed int64) (*RequestBuilder, error) {
	base := strings.TrimRight(strings.TrimSpace(opt.BaseURL), "/")
	if base == "" {
		return nil, errors.New("endpoint URL is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("endpoint URL must be http or https, got %q", parsed.Scheme)
	}

	collection := strings.TrimSpace(opt.Collection)
	if !opt.Trivial && collection == "" {
		return nil, errors.New("collection is required unless running in trivial mode")
	}

	timeMode := opt.TimeMode
	if timeMode == "" {
		timeMode = TimeModeSingle
	}
	switch timeMode {
	case TimeModeSingle, TimeModeNone:
	default:
		return nil, fmt.Errorf("unsupported time mode %q", timeMode)
	}

	maxHoursBack := opt.MaxHoursBack
	if maxHoursBack <= 0 {
		maxHoursBack = defaultMaxHoursBack
	}

	var authHeader string
	if opt.Username != "" && opt.Password != "" {
		credentials := opt.Username + ":" + opt.Password
		authHeader = "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials))
	}

	return &RequestBuilder{
		base:         base,
		collection:   collection,
		authHeader:   authHeader,
		timeMode:     timeMode,
		trivial:      opt.Trivial,
		maxHoursBack: maxHoursBack,
		rng:          rand.New(rand.NewSource(seed)),
		now:          time.Now,
	}, nil
}

// Build constructs one GET request for the given locations. In trivial mode
// locations are ignored and the bare base endpoint is queried. Multiple
// locations are joined into a single comma-separated location query.
func (b *RequestBuilder) Build(ctx context.Context, locs []string) (*http.Request, error) {
	target := b.base
	if !b.trivial {
		if len(locs) == 0 {
			return nil, errors.New("at least one location is required")
		}
		target = fmt.Sprintf("%s/collections/%s/locations/%s",
			b.base, url.PathEscape(b.collection), url.PathEscape(strings.Join(locs, ",")))
		if b.timeMode == TimeModeSingle {
			target += "?datetime=" + url.QueryEscape(b.randomDatetime())
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if b.authHeader != "" {
		req.Header.Set("Authorization", b.authHeader)
	}
	return req, nil
}

// randomDatetime returns an ISO timestamp (YYYY-MM-DDTHH:MM) on a whole
// hour between 1 and maxHoursBack hours ago, UTC.
func (b *RequestBuilder) randomDatetime() string {
	b.mu.Lock()
	hoursBack := 1 + b.rng.Intn(b.maxHoursBack)
	now := b.now()
	b.mu.Unlock()

	target := now.UTC().Truncate(time.Hour).Add(-time.Duration(hoursBack) * time.Hour)
	return target.Format("2006-01-02T15:04")
}
