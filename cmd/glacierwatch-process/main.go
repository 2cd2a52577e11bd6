package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/glacierwatch/glacierwatch/internal/app"
	"github.com/glacierwatch/glacierwatch/internal/engine"
	"github.com/glacierwatch/glacierwatch/internal/log"
	"github.com/glacierwatch/glacierwatch/pkg/config"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	projectID := flag.String("project", "", "Project to process scenes for")
	sceneID := flag.String("scene-id", "", "Process exactly this scene instead of claiming from the queue")
	fromStr := flag.String("from", "", "Only process scenes acquired on or after this date (YYYY-MM-DD)")
	toStr := flag.String("to", "", "Only process scenes acquired on or before this date (YYYY-MM-DD)")
	dryRun := flag.Bool("dry-run", false, "Compute results without committing anything")
	reprocess := flag.Bool("reprocess", false, "Replace already committed results instead of skipping them")
	cron := flag.Bool("cron", false, "Run unattended, processing scenes as they become available")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("glacierwatch-process %s\n", version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := loadConfig(*cfgFile)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	opts, err := buildOptions(cfg, *projectID, *sceneID, *fromStr, *toStr, *dryRun, *reprocess)
	if err != nil {
		log.Errorf("Invalid invocation: %v", err)
		os.Exit(1)
	}

	application := app.New(cfg, opts, *cron, log.GetSugaredLogger())
	if err := application.Run(context.Background()); err != nil {
		log.Errorf("Application error: %v", err)
		os.Exit(1)
	}
}

func loadConfig(cfgFile string) (*config.Config, error) {
	filename, _ := filepath.Abs(cfgFile)
	provider := config.NewYAMLProvider(filename)

	cfg, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}
	return cfg, nil
}

func buildOptions(cfg *config.Config, projectID, sceneID, fromStr, toStr string, dryRun, reprocess bool) (engine.Options, error) {
	opts := engine.Options{
		ProjectID: projectID,
		SceneID:   sceneID,
		DryRun:    dryRun,
		Reprocess: reprocess,
	}

	if sceneID == "" {
		if projectID == "" {
			return opts, fmt.Errorf("either -project or -scene-id is required")
		}
		if _, ok := cfg.Projects[projectID]; !ok {
			return opts, fmt.Errorf("project %q is not present in the configuration", projectID)
		}
	}

	var err error
	if fromStr != "" {
		if opts.From, err = time.Parse("2006-01-02", fromStr); err != nil {
			return opts, fmt.Errorf("parsing -from: %w", err)
		}
	}
	if toStr != "" {
		if opts.To, err = time.Parse("2006-01-02", toStr); err != nil {
			return opts, fmt.Errorf("parsing -to: %w", err)
		}
		// Inclusive end of day.
		opts.To = opts.To.Add(24*time.Hour - time.Nanosecond)
	}
	if !opts.From.IsZero() && !opts.To.IsZero() && opts.To.Before(opts.From) {
		return opts, fmt.Errorf("-to is before -from")
	}

	return opts, nil
}
