package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"newsletterctl/internal/config"
)

func runSettings(args []string) error {
	if len(args) == 0 {
		printSettingsUsage()
		return nil
	}
	switch args[0] {
	case "show":
		return runSettingsShow(args[1:])
	case "set":
		return runSettingsSet(args[1:])
	case "help", "-h", "--help":
		printSettingsUsage()
		return nil
	default:
		printSettingsUsage()
		return fmt.Errorf("unknown settings subcommand %q", args[0])
	}
}

func runSettingsShow(args []string) error {
	fs := flag.NewFlagSet("settings show", flag.ContinueOnError)
	settingsPath := fs.String("settings", config.DefaultPath(), "settings file path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := strings.TrimSpace(*settingsPath)
	settings, err := config.Load(path)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"settings_path": path,
			"settings":      settings,
		})
	}

	fmt.Printf("settings: %s\n", path)
	fmt.Printf("base_url: %s\n", settings.BaseURL)
	if settings.APIKey == "" {
		fmt.Println("api_key: (none)")
	} else {
		fmt.Println("api_key: (set)")
	}
	fmt.Printf("timeout_s: %d\n", settings.TimeoutS)
	return nil
}

func runSettingsSet(args []string) error {
	fs := flag.NewFlagSet("settings set", flag.ContinueOnError)
	settingsPath := fs.String("settings", config.DefaultPath(), "settings file path")
	url := fs.String("url", "", "backend base URL (empty keeps current)")
	apiKey := fs.String("api-key", "", "backend API key (empty keeps current; use 'none' to clear)")
	timeout := fs.Int("timeout-s", -1, "request timeout in seconds (>=1, -1 keeps current)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := strings.TrimSpace(*settingsPath)
	settings, err := config.Load(path)
	if err != nil {
		return err
	}

	if v := strings.TrimSpace(*url); v != "" {
		settings.BaseURL = v
	}
	switch v := strings.TrimSpace(*apiKey); v {
	case "":
	case "none":
		settings.APIKey = ""
	default:
		settings.APIKey = v
	}
	if *timeout != -1 {
		if *timeout < 1 {
			return errors.New("--timeout-s must be >= 1")
		}
		settings.TimeoutS = *timeout
	}

	if err := config.Save(path, settings); err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"settings_path": path,
			"settings":      settings,
		})
	}
	fmt.Printf("settings updated: %s\n", path)
	return nil
}

func printSettingsUsage() {
	fmt.Println("newsletterctl settings: manage backend connection settings")
	fmt.Println()
	fmt.Println("Subcommands:")
	fmt.Println("  show  print current settings")
	fmt.Println("  set   update settings (--url, --api-key, --timeout-s)")
}
