package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	appErr "github.com/chatkb/chatkb/internal/pkg/errors"
)

const maxPageBytes = 10 << 20

// Fetcher retrieves a single URL with a fixed identifying User-Agent. It is
// delay-agnostic; callers own the inter-request pacing via Throttle.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

type FetchResult struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

func NewFetcher(userAgent string) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: userAgent,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrFetch, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrFetch, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", appErr.ErrFetch, err)
	}
	return &FetchResult{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// Throttle enforces the fixed inter-request delay between crawl fetches. The
// sequential pacing is a rate-limiting choice towards crawled origins, not an
// accidental lack of concurrency.
type Throttle struct {
	limiter *rate.Limiter
}

func NewThrottle(delay time.Duration) *Throttle {
	if delay <= 0 {
		delay = time.Second
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.limiter == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}
