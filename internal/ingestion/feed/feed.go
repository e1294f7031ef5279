// Package feed fetches ShopData records from partner JSON feeds over HTTP.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/yungbote/bonusfinder-backend/internal/pkg/httpx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
	"github.com/yungbote/bonusfinder-backend/internal/services"
)

const (
	DefaultRequestTimeout = 20 * time.Second
	defaultParallel       = 4
	defaultRetries        = 1
	defaultRetryBase      = 500 * time.Millisecond
	maxRetryWait          = 10 * time.Second
	maxBodyBytes          = 32 << 20
)

// PageError records one feed URL that could not be fetched or decoded.
type PageError struct {
	URL string `json:"url"`
	Err string `json:"error"`
}

type Result struct {
	Shops  []services.ShopData
	Failed []PageError
}

type Fetcher struct {
	client    *http.Client
	log       *logger.Logger
	timeout   time.Duration
	parallel  int64
	retries   int
	retryBase time.Duration
}

type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option { return func(f *Fetcher) { f.client = c } }
func WithTimeout(d time.Duration) Option   { return func(f *Fetcher) { f.timeout = d } }
func WithParallel(n int) Option            { return func(f *Fetcher) { f.parallel = int64(n) } }

// WithRetries sets how often a page failing with a retryable error is tried
// again, and the base backoff between attempts.
func WithRetries(n int, base time.Duration) Option {
	return func(f *Fetcher) {
		f.retries = n
		f.retryBase = base
	}
}

func NewFetcher(baseLog *logger.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{},
		log:       baseLog.With("component", "FeedFetcher"),
		timeout:   DefaultRequestTimeout,
		parallel:  defaultParallel,
		retries:   defaultRetries,
		retryBase: defaultRetryBase,
	}
	for _, o := range opts {
		o(f)
	}
	if f.parallel < 1 {
		f.parallel = 1
	}
	if f.retries < 0 {
		f.retries = 0
	}
	return f
}

// Fetch downloads every url concurrently. A failing url is recorded in
// Result.Failed and does not stop the others. source, when set, overrides the
// source of records that lack one. Records keep url order.
func (f *Fetcher) Fetch(ctx context.Context, urls []string, source string) (*Result, error) {
	pages := make([][]services.ShopData, len(urls))
	var (
		mu     sync.Mutex
		failed []PageError
	)
	sem := semaphore.NewWeighted(f.parallel)
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		i, u := i, strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			shops, err := f.fetchOne(gctx, u)
			if err != nil {
				f.log.Warn("Feed fetch failed", "url", u, "error", err)
				mu.Lock()
				failed = append(failed, PageError{URL: u, Err: err.Error()})
				mu.Unlock()
				return nil
			}
			pages[i] = shops
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Result{Failed: failed}
	for _, p := range pages {
		for _, s := range p {
			if s.Source == "" {
				s.Source = source
			}
			out.Shops = append(out.Shops, s)
		}
	}
	return out, nil
}

// fetchOne retries timeouts, 408/429 and 5xx. Each attempt gets its own
// timeout.
func (f *Fetcher) fetchOne(ctx context.Context, url string) ([]services.ShopData, error) {
	for attempt := 0; ; attempt++ {
		shops, resp, err := f.attempt(ctx, url)
		if err == nil {
			return shops, nil
		}
		if attempt >= f.retries || ctx.Err() != nil || !httpx.IsRetryableError(err) {
			return nil, err
		}
		wait := httpx.RetryAfterDuration(resp, httpx.Backoff(attempt, f.retryBase, maxRetryWait), maxRetryWait)
		f.log.Debug("Retrying feed page", "url", url, "attempt", attempt+1, "wait", wait, "error", err)
		if err := httpx.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (f *Fetcher) attempt(ctx context.Context, url string) ([]services.ShopData, *http.Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp, &httpx.StatusError{Code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp, fmt.Errorf("read body: %w", err)
	}
	shops, err := Decode(body)
	return shops, resp, err
}

// Decode accepts either a bare array of records or {"shops": [...]}.
func Decode(body []byte) ([]services.ShopData, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	if body[0] == '[' {
		var shops []services.ShopData
		if err := json.Unmarshal(body, &shops); err != nil {
			return nil, fmt.Errorf("decode feed: %w", err)
		}
		return shops, nil
	}
	var env struct {
		Shops []services.ShopData `json:"shops"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return env.Shops, nil
}
