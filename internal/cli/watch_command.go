package cli

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"newsletterctl/internal/config"
)

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	id := fs.String("id", "", "generation id to follow (required)")
	settingsPath := fs.String("settings", config.DefaultPath(), "settings file path")
	plain := fs.Bool("plain", false, "line-by-line output instead of the interactive panel")
	verbose := fs.Bool("verbose", false, "log connection details to stderr (plain mode)")
	jsonOut := fs.Bool("json", false, "print the final progress entry as JSON")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	genID := strings.TrimSpace(*id)
	if genID == "" {
		return errors.New("generation id is required (--id)")
	}

	a, err := newApp(*settingsPath, *verbose)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.ctrl.Watch(ctx, genID)
	return followGeneration(ctx, a, genID, *plain, *jsonOut)
}
