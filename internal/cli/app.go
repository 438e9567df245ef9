package cli

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"newsletterctl/internal/backend"
	"newsletterctl/internal/config"
	"newsletterctl/internal/controller"
	"newsletterctl/internal/progress"
	"newsletterctl/internal/stream"
)

// app wires the subsystem together for one command invocation: settings,
// store, backend client, stream client, controller.
type app struct {
	settings config.Settings
	store    *progress.Store
	jobs     *backend.Client
	ctrl     *controller.Controller
	log      *logrus.Logger
}

func newApp(configPath string, verbose bool) (*app, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	if verbose {
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetOutput(io.Discard)
	}

	store := progress.NewStore()
	jobs := backend.NewClient(backend.Options{
		BaseURL: settings.BaseURL,
		APIKey:  settings.APIKey,
		Timeout: settings.Timeout(),
		Logger:  log,
	})
	streams := streamAttacher{
		client: stream.NewClient(stream.Options{
			BaseURL: settings.BaseURL,
			APIKey:  settings.APIKey,
			Logger:  log,
		}),
		store: store,
	}

	return &app{
		settings: settings,
		store:    store,
		jobs:     jobs,
		ctrl:     controller.New(jobs, streams, store),
		log:      log,
	}, nil
}

// streamAttacher adapts the stream client to the controller's Streams
// boundary, binding attachments to the shared store.
type streamAttacher struct {
	client *stream.Client
	store  *progress.Store
}

func (a streamAttacher) Attach(ctx context.Context, id string) controller.StreamHandle {
	return a.client.Attach(ctx, id, a.store)
}
