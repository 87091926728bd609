package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hu-forest/phenoflux/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "", "Path to YAML configuration file")
	flag.Parse()

	if *cfgFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -config <config.yaml>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("Configuration Check")
	fmt.Println("===================")

	fmt.Printf("Loading configuration: %s\n", *cfgFile)
	provider, err := config.NewProvider(*cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating provider: %v\n", err)
		os.Exit(1)
	}
	defer provider.Close()

	cfg, err := provider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Configuration is valid")

	fmt.Println("\nEffective Settings:")
	fmt.Println("==================")
	fmt.Printf("Series file:  %s\n", cfg.Input.SeriesFile)
	if cfg.Site.ID != "" {
		fmt.Printf("Site:         %s (metadata from %s)\n", cfg.Site.ID, cfg.Site.SitesFile)
	}
	if cfg.Input.MinYear != 0 || cfg.Input.MaxYear != 0 {
		fmt.Printf("Year range:   %d-%d\n", cfg.Input.MinYear, cfg.Input.MaxYear)
	}
	fmt.Printf("Despike:      enabled=%t window=%d threshold=%.3f\n",
		cfg.Input.Despike.Enabled, cfg.Input.Despike.Window, cfg.Input.Despike.Threshold)
	fmt.Printf("Fit:          restarts=%d seed=%d residuals=%s max-iterations=%d\n",
		cfg.Fit.Restarts, cfg.Fit.Seed, cfg.Fit.Residuals, cfg.Fit.MaxIterations)
	fmt.Printf("Sampler:      draws=%d burn-in=%d thin=%d step-scale=%.3f min-observations=%d\n",
		cfg.Sampler.Draws, cfg.Sampler.BurnIn, cfg.Sampler.Thin, cfg.Sampler.StepScale,
		cfg.Sampler.MinObservations)
	fmt.Printf("Transitions:  method=%s threshold-fraction=%.2f min-amplitude=%.3f\n",
		cfg.Transitions.Method, cfg.Transitions.ThresholdFraction, cfg.Transitions.MinAmplitude)
	fmt.Printf("Output:       directory=%s format=%s day-length=%t\n",
		cfg.Output.Directory, effectiveFormat(cfg.Output.Format), cfg.Output.DayLength)
	fmt.Printf("Windowing:    pad-days=%d\n", cfg.WindowPadDays)
	fmt.Printf("Workers:      %d", cfg.Workers)
	if cfg.Workers == 0 {
		fmt.Printf(" (one per CPU, capped at year count)")
	}
	fmt.Println()
}

func effectiveFormat(format string) string {
	if format == "" {
		return "csv only"
	}
	return format
}
