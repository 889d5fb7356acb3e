package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	v1 "github.com/kubev2v/workmanager/api/v1"
	serviceErrs "github.com/kubev2v/workmanager/pkg/errors"
)

// RequestEditorFn can modify a request before it is sent.
type RequestEditorFn func(ctx context.Context, req *http.Request) error

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithRequestEditorFn(fn RequestEditorFn) ClientOption {
	return func(cl *Client) {
		cl.editors = append(cl.editors, fn)
	}
}

// WithMaxTries sets how many times an idempotent request is attempted when
// the daemon cannot be reached.
func WithMaxTries(n uint) ClientOption {
	return func(cl *Client) {
		cl.maxTries = max(n, 1)
	}
}

// Client talks to the workd HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	editors    []RequestEditorFn
	maxTries   uint
}

func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid workd url %q", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api/v1",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxTries:   3,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ListQueues
// GET /api/v1/queues
func (c *Client) ListQueues(ctx context.Context) ([]v1.Queue, error) {
	var out v1.QueueList
	if err := c.do(ctx, http.MethodGet, "/queues", nil, &out); err != nil {
		return nil, err
	}
	return out.Queues, nil
}

// UpdateQueue toggles a queue, "*" for all of them.
// PATCH /api/v1/queues/{id}
func (c *Client) UpdateQueue(ctx context.Context, id string, update v1.QueueUpdate) ([]v1.Queue, error) {
	var out v1.QueueList
	if err := c.do(ctx, http.MethodPatch, "/queues/"+url.PathEscape(id), update, &out); err != nil {
		return nil, err
	}
	return out.Queues, nil
}

// ListQueueWorks
// GET /api/v1/queues/{id}/works
func (c *Client) ListQueueWorks(ctx context.Context, id string, state v1.WorkState) ([]v1.Work, error) {
	path := "/queues/" + url.PathEscape(id) + "/works"
	if state != "" {
		path += "?state=" + url.QueryEscape(string(state))
	}
	var out v1.WorkList
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Works, nil
}

// ScheduleWork is never retried: a lost response does not mean the work was
// not scheduled.
// POST /api/v1/works
func (c *Client) ScheduleWork(ctx context.Context, req v1.ScheduleWorkRequest) (*v1.Work, error) {
	var out v1.Work
	if err := c.do(ctx, http.MethodPost, "/works", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetWork
// GET /api/v1/works/{id}
func (c *Client) GetWork(ctx context.Context, id string) (*v1.Work, error) {
	var out v1.Work
	if err := c.do(ctx, http.MethodGet, "/works/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelWork
// DELETE /api/v1/works/{id}
func (c *Client) CancelWork(ctx context.Context, id string) (*v1.Work, error) {
	var out v1.Work
	if err := c.do(ctx, http.MethodDelete, "/works/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Await waits server side until the queue ("" for all) is idle.
// POST /api/v1/await
func (c *Client) Await(ctx context.Context, queue string, timeout time.Duration) (bool, error) {
	req := v1.AwaitRequest{Timeout: timeout.String()}
	if queue != "" {
		req.Queue = &queue
	}
	var out v1.AwaitResponse
	if err := c.do(ctx, http.MethodPost, "/await", req, &out); err != nil {
		return false, err
	}
	return out.Completed, nil
}

// History
// GET /api/v1/history
func (c *Client) History(ctx context.Context, query url.Values) (*v1.HistoryResponse, error) {
	path := "/history"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var out v1.HistoryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	tries := c.maxTries
	if method == http.MethodPost {
		tries = 1
	}

	resp, err := backoff.Retry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for _, edit := range c.editors {
			if err := edit(ctx, req); err != nil {
				return nil, backoff.Permanent(err)
			}
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			zap.S().Named("workd_client").Debugw("request failed", "method", method, "path", path, "error", err)
			return nil, err
		}
		return resp, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(tries))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return responseError(resp, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func responseError(resp *http.Response, data []byte) error {
	var apiErr v1.Error
	msg := resp.Status
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return &serviceErrs.ResourceNotFoundError{Kind: strings.TrimSuffix(msg, " not found")}
	case http.StatusBadRequest:
		return serviceErrs.NewInvalidArgumentError("request", errors.New(msg))
	case http.StatusConflict:
		return serviceErrs.NewConflictError("%s", msg)
	default:
		return fmt.Errorf("workd returned %s: %s", resp.Status, msg)
	}
}
