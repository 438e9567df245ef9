// Package controller translates user intent into store and stream lifecycle
// operations. It is the only component that talks to the backend's
// job-control endpoints.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"newsletterctl/internal/progress"
)

// JobService is the job-control boundary. Satisfied by *backend.Client.
type JobService interface {
	StartGeneration(ctx context.Context, config json.RawMessage) (string, error)
	CancelGeneration(ctx context.Context, id string) error
}

// StreamHandle is one live stream attachment as the controller sees it.
type StreamHandle interface {
	Done() <-chan struct{}
	Err() error
	Detach()
}

// Streams opens progress stream attachments. Satisfied by a thin adapter
// over *stream.Client in the cli wiring.
type Streams interface {
	Attach(ctx context.Context, id string) StreamHandle
}

// ErrStartInFlight is returned when Generate is called while a previous
// start request has not yet produced an entry.
var ErrStartInFlight = errors.New("a generation start request is already in flight")

type Controller struct {
	jobs    JobService
	streams Streams
	store   *progress.Store

	mu         sync.Mutex
	starting   bool
	cancelling map[string]bool
	handles    map[string]StreamHandle
}

func New(jobs JobService, streams Streams, store *progress.Store) *Controller {
	return &Controller{
		jobs:       jobs,
		streams:    streams,
		store:      store,
		cancelling: make(map[string]bool),
		handles:    make(map[string]StreamHandle),
	}
}

// Generate submits a generation job and, on success, begins tracking it and
// attaches its progress stream. A failed start leaves the store untouched:
// no entry is created for a job that never existed. The passed context bounds
// the stream attachment's lifetime, not just the start request.
func (c *Controller) Generate(ctx context.Context, config json.RawMessage) (string, error) {
	c.mu.Lock()
	if c.starting {
		c.mu.Unlock()
		return "", ErrStartInFlight
	}
	c.starting = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
	}()

	id, err := c.jobs.StartGeneration(ctx, config)
	if err != nil {
		return "", err
	}
	c.track(ctx, id)
	return id, nil
}

// Watch begins tracking an already-created generation and attaches its
// stream. The backend replays a generation's event history to new
// subscribers, so attaching late still converges on the full state.
func (c *Controller) Watch(ctx context.Context, id string) {
	c.track(ctx, id)
}

func (c *Controller) track(ctx context.Context, id string) {
	c.store.StartTracking(id)
	handle := c.streams.Attach(ctx, id)
	c.mu.Lock()
	c.handles[id] = handle
	c.mu.Unlock()
}

// Cancel sends a cancellation request for id. The store is only marked
// cancelled once the backend acknowledges; a failed request leaves the entry
// running so the user can retry. If a terminal event won the race in the
// meantime, the store mark is a no-op.
func (c *Controller) Cancel(ctx context.Context, id string) error {
	c.mu.Lock()
	c.cancelling[id] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.cancelling, id)
		c.mu.Unlock()
	}()

	if err := c.jobs.CancelGeneration(ctx, id); err != nil {
		return err
	}
	c.store.CancelGeneration(id)
	return nil
}

// Clear drops the entry for id and detaches its stream if one is still
// attached. Clearing a non-terminal entry abandons the stream without
// stopping backend execution; that is the caller's decision to make.
func (c *Controller) Clear(id string) {
	c.mu.Lock()
	handle := c.handles[id]
	delete(c.handles, id)
	c.mu.Unlock()
	if handle != nil {
		handle.Detach()
	}
	c.store.ClearGeneration(id)
}

// Handle returns the live stream handle for id, if any.
func (c *Controller) Handle(id string) (StreamHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	handle, ok := c.handles[id]
	return handle, ok
}

// IsStarting reports whether a Generate call is in flight that has not yet
// produced an entry.
func (c *Controller) IsStarting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starting
}

// IsCancelling reports whether a Cancel call for id is in flight.
func (c *Controller) IsCancelling(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelling[id]
}

// IsGenerating reports whether the active entry exists and is not terminal.
func (c *Controller) IsGenerating() bool {
	active := c.store.Active()
	return active != nil && !active.Terminal()
}
