package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"newsletterctl/internal/config"
	"newsletterctl/internal/model"
)

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	configFile := fs.String("config", "", "generation config JSON file (required)")
	settingsPath := fs.String("settings", config.DefaultPath(), "settings file path")
	plain := fs.Bool("plain", false, "line-by-line output instead of the interactive panel")
	verbose := fs.Bool("verbose", false, "log connection details to stderr (plain mode)")
	jsonOut := fs.Bool("json", false, "print the final progress entry as JSON")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*configFile) == "" {
		return errors.New("generation config is required (--config <file>)")
	}

	raw, err := os.ReadFile(*configFile)
	if err != nil {
		return fmt.Errorf("read generation config %s: %w", *configFile, err)
	}
	// The config document is opaque to this client; only reject files the
	// backend could never parse.
	if !json.Valid(raw) {
		return fmt.Errorf("generation config %s is not valid JSON", *configFile)
	}

	a, err := newApp(*settingsPath, *verbose)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	id, err := a.ctrl.Generate(ctx, raw)
	if err != nil {
		return err
	}

	return followGeneration(ctx, a, id, *plain, *jsonOut)
}

// followGeneration renders the progress surface for id until the generation
// reaches a terminal state or the user stops watching, then reports the
// outcome. A failed generation is reported as a command error.
func followGeneration(ctx context.Context, a *app, id string, plain, jsonOut bool) error {
	var (
		final *model.GenerationProgress
		err   error
	)
	if !plain && stdoutIsTTY() {
		final, err = runWatchSurface(ctx, a, id)
	} else {
		fmt.Printf("generation %s started\n", id)
		final, err = runPlainFollow(ctx, a, id)
	}
	if err != nil {
		return err
	}

	if jsonOut {
		if printErr := printJSON(final); printErr != nil {
			return printErr
		}
	} else {
		printOutcome(final, id)
	}
	if final != nil && final.Failed() {
		return fmt.Errorf("generation %s failed: %s", id, final.ErrorMessage)
	}
	return nil
}

func printOutcome(entry *model.GenerationProgress, id string) {
	switch {
	case entry == nil:
		fmt.Printf("generation %s: no progress recorded\n", id)
	case entry.IsCancelled:
		fmt.Printf("generation %s cancelled\n", id)
	case entry.Failed():
		// the error itself is reported by the caller
	case entry.IsComplete && entry.GhostPostURL != "":
		fmt.Printf("generation %s complete: %s\n", id, entry.GhostPostURL)
	case entry.IsComplete:
		fmt.Printf("generation %s complete\n", id)
	default:
		fmt.Printf("stopped watching generation %s; it may still be running (newsletterctl watch --id %s)\n", id, id)
	}
}
