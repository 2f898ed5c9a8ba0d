// Package apify talks to the external scraping platform: starting actor
// runs, probing run state and paging datasets. The platform is a black box
// reached over HTTP; this client only knows the handful of endpoints the
// pipeline needs.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoRunID marks a run submission that succeeded at the transport level
// but whose response carried no run identifier. The job must not silently
// proceed past it.
var ErrNoRunID = errors.New("run submitted but response contained no run id")

// StatusError is a non-2xx platform response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("apify: HTTP %d: %s", e.Status, truncate(e.Body, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

type Config struct {
	BaseURL      string // e.g. https://api.apify.com
	Token        string
	ProductActor string // stage-1 actor slug
	SellerActor  string // stage-2 actor slug
	HTTPClient   *http.Client
}

type Client struct {
	baseURL      string
	token        string
	productActor string
	sellerActor  string
	httpc        *http.Client
}

func NewClient(cfg Config) *Client {
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 45 * time.Second}
	}
	return &Client{
		baseURL:      trimSlash(cfg.BaseURL),
		token:        cfg.Token,
		productActor: cfg.ProductActor,
		sellerActor:  cfg.SellerActor,
		httpc:        httpc,
	}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// WebhookTarget registers a completion webhook on a run submission.
type WebhookTarget struct {
	EventTypes      []string `json:"eventTypes"`
	RequestURL      string   `json:"requestUrl"`
	PayloadTemplate string   `json:"payloadTemplate"`
}

// NewRunWebhook builds the standard completion webhook registration: fire on
// terminal run states and deliver runId/datasetId placeholders.
func NewRunWebhook(requestURL string) WebhookTarget {
	return WebhookTarget{
		EventTypes:      []string{"ACTOR.RUN.SUCCEEDED", "ACTOR.RUN.FAILED", "ACTOR.RUN.ABORTED"},
		RequestURL:      requestURL,
		PayloadTemplate: `{"runId":"{{runId}}","datasetId":"{{defaultDatasetId}}","resource":{{resource}}}`,
	}
}

// ProductRunInput is the stage-1 actor input: a keyword search on one
// marketplace, limited to pageDepth result pages.
type ProductRunInput struct {
	Search      string          `json:"search"`
	Marketplace string          `json:"marketplace,omitempty"`
	EndPage     int             `json:"endPage"`
	MaxItems    int             `json:"maxItems,omitempty"`
	Proxy       map[string]bool `json:"proxy,omitempty"`
	Webhooks    []WebhookTarget `json:"webhooks,omitempty"`
}

// SellerRunInput is the stage-2 actor input: the deduplicated seller list.
type SellerRunInput struct {
	Input    any             `json:"input"`
	Webhooks []WebhookTarget `json:"webhooks,omitempty"`
}

func (c *Client) StartProductRun(ctx context.Context, input ProductRunInput) (string, error) {
	if input.Proxy == nil {
		input.Proxy = map[string]bool{"useApifyProxy": true}
	}
	return c.startRun(ctx, c.productActor, input)
}

func (c *Client) StartSellerRun(ctx context.Context, input SellerRunInput) (string, error) {
	return c.startRun(ctx, c.sellerActor, input)
}

func (c *Client) startRun(ctx context.Context, actor string, input any) (string, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	url := fmt.Sprintf("%s/v2/acts/%s/runs", c.baseURL, actor)
	if err := c.do(ctx, http.MethodPost, url, body, &resp); err != nil {
		return "", err
	}
	if resp.Data.ID == "" {
		return "", ErrNoRunID
	}
	return resp.Data.ID, nil
}

// RunStatus is the live state of an external run.
type RunStatus struct {
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

func (c *Client) RunInfo(ctx context.Context, runID string) (*RunStatus, error) {
	var resp struct {
		Data RunStatus `json:"data"`
	}
	url := fmt.Sprintf("%s/v2/actor-runs/%s", c.baseURL, runID)
	if err := c.do(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// DatasetItemCount probes how many items a dataset holds so far. Used for
// live progress counters, not for paging.
func (c *Client) DatasetItemCount(ctx context.Context, datasetID string) (int, error) {
	var resp struct {
		Data struct {
			ItemCount int `json:"itemCount"`
		} `json:"data"`
	}
	url := fmt.Sprintf("%s/v2/datasets/%s", c.baseURL, datasetID)
	if err := c.do(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Data.ItemCount, nil
}

func (c *Client) DeleteDataset(ctx context.Context, datasetID string) error {
	url := fmt.Sprintf("%s/v2/datasets/%s", c.baseURL, datasetID)
	return c.do(ctx, http.MethodDelete, url, nil, nil)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &StatusError{Status: res.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("apify: decode %s response: %w", url, err)
	}
	return nil
}
