// Package stream consumes the backend's per-generation SSE progress stream
// and converts each inbound event into exactly one store mutation.
package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"newsletterctl/internal/model"
)

// Applier is the store-facing half of the client. Satisfied by
// *progress.Store.
type Applier interface {
	ApplyEvent(id string, ev model.Event)
}

type Options struct {
	BaseURL string
	APIKey  string
	Logger  *logrus.Logger

	// ReconnectAttempts bounds how many times a dropped connection is
	// re-established before the attachment gives up and leaves the entry
	// non-terminal. Zero means the default of 5.
	ReconnectAttempts uint
	ReconnectDelay    time.Duration
}

type Client struct {
	http     *resty.Client
	log      *logrus.Logger
	attempts uint
	delay    time.Duration
}

const defaultReconnectAttempts = 5

func NewClient(opts Options) *Client {
	rc := resty.New().SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	if opts.APIKey != "" {
		rc.SetAuthToken(opts.APIKey)
	}
	log := opts.Logger
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	attempts := opts.ReconnectAttempts
	if attempts == 0 {
		attempts = defaultReconnectAttempts
	}
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &Client{http: rc, log: log, attempts: attempts, delay: delay}
}

// Handle is one live attachment. Done is closed when the attachment ends:
// on the generation's terminal event, on Detach, or once the reconnect
// budget is exhausted. Err reports the reason in the last case.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (h *Handle) Done() <-chan struct{} { return h.done }

// Err is valid once Done is closed. Nil means the stream ended with a
// terminal event or an explicit detach.
func (h *Handle) Err() error { return h.err }

// Detach stops the attachment without touching the store: the entry keeps
// whatever state it had, and the backend job keeps running.
func (h *Handle) Detach() {
	h.cancel()
	<-h.done
}

// Attach opens the event stream for id and applies every decoded event to
// the store until a terminal event arrives or the attachment is stopped.
// Reconnects are safe: the backend replays a generation's event history to
// new subscribers, and the store discards anything already applied.
func (c *Client) Attach(ctx context.Context, id string, store Applier) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		err := retry.Do(
			func() error {
				terminal, err := c.consume(ctx, id, store)
				if terminal {
					return nil
				}
				if err == nil {
					err = io.ErrUnexpectedEOF
				}
				if ctx.Err() != nil {
					return retry.Unrecoverable(ctx.Err())
				}
				c.log.WithField("generation_id", id).WithError(err).Debug("progress stream dropped, reconnecting")
				return err
			},
			retry.Attempts(c.attempts),
			retry.Delay(c.delay),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
		)
		if err != nil && ctx.Err() == nil {
			h.err = fmt.Errorf("progress stream for %s: %w", id, err)
			c.log.WithField("generation_id", id).WithError(err).Debug("progress stream gave up")
		}
	}()
	return h
}

// consume runs one connection. It reports terminal=true when a terminal
// event for the generation was applied.
func (c *Client) consume(ctx context.Context, id string, store Applier) (bool, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "text/event-stream").
		Get("/api/v1/progress/stream/" + id)
	if err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()
	if resp.StatusCode() >= 400 {
		return false, fmt.Errorf("connect: backend returned %s", resp.Status())
	}
	c.log.WithField("generation_id", id).Debug("progress stream connected")

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			terminal := c.dispatch(id, store, data)
			data = data[:0]
			if terminal {
				return true, nil
			}
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// event:/id:/retry: fields and ": " comments carry nothing the
			// decoder needs; the type lives in the data payload.
		}
	}
	if terminal := c.dispatch(id, store, data); terminal {
		return true, nil
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("read: %w", err)
	}
	return false, nil
}

func (c *Client) dispatch(id string, store Applier, data []string) bool {
	if len(data) == 0 {
		return false
	}
	raw := strings.Join(data, "\n")
	// The backend builds its payload as a pre-framed "data: {json}" string
	// and then frames it again for transport, so real frames arrive
	// double-prefixed.
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "data:"), " ")
	ev, err := model.DecodeEvent([]byte(raw))
	if err != nil {
		c.log.WithField("generation_id", id).WithError(err).Debug("discarding undecodable stream message")
		return false
	}
	if ev == nil {
		// Heartbeat, ping, or an event kind this client does not know.
		return false
	}
	store.ApplyEvent(id, ev)
	return model.TerminalEvent(ev.Type())
}
