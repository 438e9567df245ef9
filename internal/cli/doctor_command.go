package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"newsletterctl/internal/config"
)

// doctor is the preflight check: can this client reach the backend's
// progress API with the configured settings.
func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	settingsPath := fs.String("settings", config.DefaultPath(), "settings file path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	verbose := fs.Bool("verbose", false, "log connection details to stderr")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(strings.TrimSpace(*settingsPath), *verbose)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.settings.Timeout())
	defer cancel()

	hbErr := a.jobs.Heartbeat(ctx)
	if *jsonOut {
		report := map[string]any{
			"base_url":          a.settings.BaseURL,
			"backend_reachable": hbErr == nil,
		}
		if hbErr != nil {
			report["error"] = hbErr.Error()
		}
		if err := printJSON(report); err != nil {
			return err
		}
		return hbErr
	}

	fmt.Printf("backend: %s\n", a.settings.BaseURL)
	if hbErr != nil {
		fmt.Println("reachable: no")
		return hbErr
	}
	fmt.Println("reachable: yes")
	return nil
}
