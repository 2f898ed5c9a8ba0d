package apify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// RetryPolicy bounds the wait for an eventually-consistent dataset. A
// freshly completed run can still report zero items for a short while, so an
// empty full pass is retried with growing delay until MaxWait is spent.
type RetryPolicy struct {
	PageSize       int
	InitialDelay   time.Duration
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	MaxWait        time.Duration
	RequestTimeout time.Duration
}

// DefaultRetryPolicy mirrors the settle behaviour of the upstream dataset
// store: ~2s to settle, then bounded backoff up to a 90s budget.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		PageSize:       1000,
		InitialDelay:   2 * time.Second,
		BaseBackoff:    2 * time.Second,
		MaxBackoff:     10 * time.Second,
		MaxWait:        90 * time.Second,
		RequestTimeout: 45 * time.Second,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.PageSize <= 0 {
		p.PageSize = d.PageSize
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = d.RequestTimeout
	}
	return p
}

// nextBackoff grows with the time already waited, capped at MaxBackoff.
func (p RetryPolicy) nextBackoff(waited time.Duration) time.Duration {
	next := p.BaseBackoff + waited/3
	if next > p.MaxBackoff {
		next = p.MaxBackoff
	}
	return next
}

// FetchAllItems pages through a dataset until a short page, concatenating
// pages in order. An empty full pass is retried per the policy; when the
// wait budget runs out the empty result is returned and the caller decides
// whether empty is fatal. Transport errors and non-array bodies are hard
// failures, never treated as "no more pages".
func FetchAllItems[T any](ctx context.Context, c *Client, datasetID string, policy RetryPolicy) ([]T, error) {
	p := policy.withDefaults()
	var waited time.Duration

	if p.InitialDelay > 0 {
		if err := sleep(ctx, p.InitialDelay); err != nil {
			return nil, err
		}
		waited += p.InitialDelay
	}

	for {
		items, err := fetchPass[T](ctx, c, datasetID, p)
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			return items, nil
		}

		next := p.nextBackoff(waited)
		if waited+next > p.MaxWait {
			log.Printf("[apify] dataset=%s empty after %s of retries, giving up", datasetID, waited)
			return items, nil
		}
		log.Printf("[apify] dataset=%s still empty, waited=%s next_wait=%s", datasetID, waited, next)
		if err := sleep(ctx, next); err != nil {
			return nil, err
		}
		waited += next
	}
}

// fetchPass performs one full paging pass. A full page always implies more
// pages might exist; only a short page terminates.
func fetchPass[T any](ctx context.Context, c *Client, datasetID string, p RetryPolicy) ([]T, error) {
	var items []T
	offset := 0
	for {
		page, err := fetchPage[T](ctx, c, datasetID, offset, p)
		if err != nil {
			return nil, err
		}
		items = append(items, page...)
		if len(page) < p.PageSize {
			return items, nil
		}
		offset += p.PageSize
	}
}

func fetchPage[T any](ctx context.Context, c *Client, datasetID string, offset int, p RetryPolicy) ([]T, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.RequestTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/v2/datasets/%s/items?clean=true&offset=%d&limit=%d",
		c.baseURL, datasetID, offset, p.PageSize)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dataset %s page offset=%d: %w", datasetID, offset, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{Status: res.StatusCode, Body: string(raw)}
	}

	var page []T
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("dataset %s items response is not an array: %w", datasetID, err)
	}
	return page, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
