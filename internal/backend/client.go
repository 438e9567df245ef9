// Package backend is the job-control client for the newsletter dashboard
// API: it creates generation jobs, requests cancellation, and probes
// connectivity. It never touches the progress store.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when the backend does not know the addressed
// generation or template.
var ErrNotFound = errors.New("not found")

type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *logrus.Logger
}

type Client struct {
	http *resty.Client
	log  *logrus.Logger
}

func NewClient(opts Options) *Client {
	rc := resty.New().SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	if opts.APIKey != "" {
		rc.SetAuthToken(opts.APIKey)
	}
	if opts.Timeout > 0 {
		rc.SetTimeout(opts.Timeout)
	}
	log := opts.Logger
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Client{http: rc, log: log}
}

// StartGeneration submits a generation job. The config document is opaque to
// this client and is passed to the backend verbatim. Returns the
// backend-assigned generation id.
func (c *Client) StartGeneration(ctx context.Context, config json.RawMessage) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]json.RawMessage{"config": config}).
		SetResult(&out).
		Post("/api/v1/newsletters/generate")
	if err != nil {
		return "", fmt.Errorf("start generation: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("start generation: %w", apiError(resp))
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", errors.New("start generation: backend response has no generation id")
	}
	c.log.WithField("generation_id", out.ID).Debug("generation started")
	return out.ID, nil
}

// CancelGeneration asks the backend to stop a running generation. The
// request is cooperative: the job may still finish before acknowledging.
func (c *Client) CancelGeneration(ctx context.Context, id string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Post("/api/v1/newsletters/" + id + "/cancel")
	if err != nil {
		return fmt.Errorf("cancel generation %s: %w", id, err)
	}
	if resp.IsError() {
		return fmt.Errorf("cancel generation %s: %w", id, apiError(resp))
	}
	c.log.WithField("generation_id", id).Debug("cancellation requested")
	return nil
}

// Heartbeat probes the progress API. Used by preflight checks.
func (c *Client) Heartbeat(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/api/v1/progress/heartbeat")
	if err != nil {
		return fmt.Errorf("backend heartbeat: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("backend heartbeat: %w", apiError(resp))
	}
	return nil
}

func apiError(resp *resty.Response) error {
	if resp.StatusCode() == http.StatusNotFound {
		return ErrNotFound
	}
	detail := struct {
		Detail string `json:"detail"`
	}{}
	if err := json.Unmarshal(resp.Body(), &detail); err == nil && detail.Detail != "" {
		return fmt.Errorf("backend returned %s: %s", resp.Status(), detail.Detail)
	}
	return fmt.Errorf("backend returned %s", resp.Status())
}
