// Command spbebonds scrapes bond reference data and prospectus documents
// from the SPB Exchange listing.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/akulagin/spbebonds/internal/app"
	"github.com/akulagin/spbebonds/internal/config"
	"github.com/akulagin/spbebonds/internal/utils"
)

const version = "1.2.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "run":
		runCommand(args, func(ctx context.Context, a *app.App) error {
			_, err := a.Run(ctx)
			return err
		})
	case "reference-data":
		runCommand(args, func(ctx context.Context, a *app.App) error {
			_, err := a.RunReferenceData(ctx)
			return err
		})
	case "prospectuses":
		runCommand(args, func(ctx context.Context, a *app.App) error {
			_, err := a.RunProspectuses(ctx)
			return err
		})
	case "validate":
		validateCommand(args)
	case "version":
		fmt.Printf("spbebonds version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// options are the flags shared by the scraping commands.
type options struct {
	configPath       string
	verbose          bool
	includeCancelled bool
	forceRedownload  bool
}

func parseOptions(args []string) (*options, error) {
	opts := &options{}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-c", "--config":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s requires a path", args[i])
			}
			i++
			opts.configPath = args[i]
		case "-v", "--verbose":
			opts.verbose = true
		case "--include-cancelled":
			opts.includeCancelled = true
		case "--force-redownload":
			opts.forceRedownload = true
		default:
			return nil, fmt.Errorf("unknown flag: %s", args[i])
		}
	}
	return opts, nil
}

func loadConfig(opts *options) (*config.Config, error) {
	if opts.configPath != "" {
		return config.LoadFromFile(opts.configPath)
	}
	return config.Default(), nil
}

func runCommand(args []string, run func(context.Context, *app.App) error) {
	opts, err := parseOptions(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if opts.includeCancelled {
		cfg.Scraping.IncludeCancelled = true
	}
	if opts.forceRedownload {
		cfg.Download.ForceRedownload = true
	}

	level := cfg.LogLevel()
	if opts.verbose {
		level = utils.DebugLevel
	}
	logger, closeLog, err := buildLogger(cfg, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg, logger)
	a.Start()
	defer a.Close()

	if err := run(ctx, a); err != nil {
		logger.Errorf("run failed: %v", err)
		os.Exit(1)
	}
}

func validateCommand(args []string) {
	opts, err := parseOptions(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if opts.configPath == "" {
		fmt.Fprintln(os.Stderr, "error: validate requires --config <path>")
		os.Exit(1)
	}
	if _, err := config.LoadFromFile(opts.configPath); err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s is valid\n", opts.configPath)
}

// buildLogger creates the run logger, teeing to a log file when configured.
func buildLogger(cfg *config.Config, level utils.LogLevel) (utils.Logger, func(), error) {
	if cfg.Logging.File == "" {
		return utils.NewLoggerWithLevel(level), func() {}, nil
	}

	f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := utils.NewLoggerWithOutput(level, io.MultiWriter(os.Stderr, f))
	return logger, func() { f.Close() }, nil
}

func printUsage() {
	fmt.Println(`spbebonds - SPB Exchange bond reference data and prospectus scraper

Usage:
  spbebonds <command> [flags]

Commands:
  run             Export reference data and download prospectuses
  reference-data  Export the reference data CSV/XLSX/JSON only
  prospectuses    Download prospectus documents only
  validate        Validate a configuration file
  version         Print the version
  help            Show this help

Flags:
  -c, --config <path>     Configuration file (YAML)
  -v, --verbose           Debug logging
  --include-cancelled     Also process cancelled bond issues
  --force-redownload      Re-fetch documents that already exist on disk

Examples:
  spbebonds run -c configs/spbebonds.yaml
  spbebonds reference-data -v
  spbebonds prospectuses --include-cancelled`)
}
