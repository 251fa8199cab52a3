package collector

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
	DefaultFetchTimeout = 20 * time.Second
)

// Fetcher downloads one page and returns its markup.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetcherOptions configures HTTPFetcher.
type FetcherOptions struct {
	UserAgent string
	Timeout   time.Duration
	// InsecureTLS skips certificate verification; some agency sites serve
	// incomplete chains.
	InsecureTLS bool
	// RPS paces requests across all sources; 0 disables pacing.
	RPS float64
}

// HTTPFetcher fetches pages with colly. A non-2xx answer is an error.
type HTTPFetcher struct {
	base    *colly.Collector
	limiter *rate.Limiter
}

func NewHTTPFetcher(opts FetcherOptions) *HTTPFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetchTimeout
	}

	c := colly.NewCollector(
		colly.UserAgent(opts.UserAgent),
		colly.AllowURLRevisit(),
	)
	if opts.InsecureTLS {
		c.WithTransport(&http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   opts.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			TLSHandshakeTimeout: 10 * time.Second,
		})
	}
	c.SetRequestTimeout(opts.Timeout)

	f := &HTTPFetcher{base: c}
	if opts.RPS > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("collector: fetch %s: %w", url, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("collector: fetch %s: %w", url, err)
	}

	c := f.base.Clone()
	var (
		body   []byte
		status int
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})

	if err := c.Visit(url); err != nil {
		return "", fmt.Errorf("collector: fetch %s: %w", url, err)
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("collector: fetch %s: unexpected status %d", url, status)
	}
	return string(body), nil
}
