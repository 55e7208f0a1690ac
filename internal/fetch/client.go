package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/cenkalti/backoff/v5"
	"github.com/dmitrijs2005/annfeed/internal/common"
)

const maxBodySize = 16 << 20

var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
	"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
}

// Client performs GET requests against publisher APIs, retrying transient
// failures (transport errors, 429 and 5xx responses).
type Client struct {
	hc       *http.Client
	maxTries uint
	backOff  func() backoff.BackOff
}

type ClientOption func(*Client)

// WithMaxTries sets the total number of attempts per request.
func WithMaxTries(n uint) ClientOption {
	return func(c *Client) { c.maxTries = n }
}

// WithBackOff replaces the exponential back-off between attempts.
func WithBackOff(f func() backoff.BackOff) ClientOption {
	return func(c *Client) { c.backOff = f }
}

func NewClient(hc *http.Client, opts ...ClientOption) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	c := &Client{
		hc:       hc,
		maxTries: 3,
		backOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get fetches rawURL with the given query parameters and returns the body.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: bad url %q: %w", common.ErrFetchFailed, rawURL, err)
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	target := u.String()

	op := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		for k, v := range browserHeaders {
			req.Header.Set(k, v)
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}

		return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	}

	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.backOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", common.ErrFetchFailed, target, err)
	}
	return body, nil
}
