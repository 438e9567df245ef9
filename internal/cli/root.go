package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "generate":
		return runGenerate(args[1:])
	case "watch":
		return runWatch(args[1:])
	case "cancel":
		return runCancel(args[1:])
	case "settings":
		return runSettings(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("newsletterctl: progress console for the newsletter dashboard backend")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  newsletterctl settings set --url http://dashboard:8000")
	fmt.Println("  newsletterctl doctor")
	fmt.Println("  newsletterctl generate --config generation.json")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  generate  start a newsletter generation and follow its progress")
	fmt.Println("  watch     follow the progress of an already-running generation")
	fmt.Println("  cancel    request cancellation of a running generation")
	fmt.Println("  settings  show/update backend connection settings")
	fmt.Println("  doctor    check backend connectivity")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - On a TTY, generate/watch render an interactive progress panel;")
	fmt.Println("    use --plain for line-by-line output (the default when piped)")
	fmt.Println("  - NEWSLETTERR_URL / NEWSLETTERR_API_KEY override the settings file")
}
