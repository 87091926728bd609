package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hu-forest/phenoflux/internal/app"
	"github.com/hu-forest/phenoflux/internal/constants"
	"github.com/hu-forest/phenoflux/internal/log"
	"github.com/hu-forest/phenoflux/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("phenoflux %s\n", constants.Version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Load configuration
	provider, err := loadConfig(*cfgFile)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	defer provider.Close()

	// Create and run the application
	application := app.New(provider, log.GetSugaredLogger())
	if err := application.Run(context.Background()); err != nil {
		log.Errorf("Application error: %v", err)
		os.Exit(1)
	}
}

func loadConfig(cfgFile string) (config.Provider, error) {
	filename, _ := filepath.Abs(cfgFile)

	provider, err := config.NewProvider(filename)
	if err != nil {
		return nil, err
	}

	if _, err := provider.LoadConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}

	return provider, nil
}
