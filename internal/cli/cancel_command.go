package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"newsletterctl/internal/config"
)

func runCancel(args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ContinueOnError)
	id := fs.String("id", "", "generation id to cancel (required)")
	settingsPath := fs.String("settings", config.DefaultPath(), "settings file path")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	verbose := fs.Bool("verbose", false, "log connection details to stderr")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	genID := strings.TrimSpace(*id)
	if genID == "" {
		return errors.New("generation id is required (--id)")
	}

	if !*yes {
		ok, err := promptConfirm(fmt.Sprintf("request cancellation of generation %s? [y/N] ", genID))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("aborted")
			return nil
		}
	}

	a, err := newApp(*settingsPath, *verbose)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.settings.Timeout())
	defer cancel()

	if err := a.ctrl.Cancel(ctx, genID); err != nil {
		return err
	}
	fmt.Printf("cancellation requested for generation %s\n", genID)
	fmt.Println("note: cancellation is cooperative; the backend may still finish the job")
	return nil
}
