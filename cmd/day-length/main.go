package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hu-forest/phenoflux/internal/sites"
	"github.com/hu-forest/phenoflux/pkg/solar"
)

func main() {
	var (
		dateStr   = flag.String("date", "", "UTC date to calculate day length for (e.g. 2024-06-21; defaults to today)")
		latStr    = flag.String("lat", "", "Latitude in decimal degrees")
		siteID    = flag.String("site", "", "Site ID to look up in the sites file (alternative to -lat)")
		sitesFile = flag.String("sites-file", "", "Path to the site metadata CSV (required with -site)")
	)
	flag.Parse()

	var t time.Time
	if *dateStr == "" {
		t = time.Now().UTC()
	} else {
		var err error
		t, err = time.Parse("2006-01-02", *dateStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
			os.Exit(1)
		}
	}

	latitude, label, err := resolveLatitude(*latStr, *siteID, *sitesFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	length := solar.DayLength(t, latitude)

	fmt.Printf("Day Length for %s at %s\n", t.Format("2006-01-02"), label)
	fmt.Printf("  Latitude:     %.4f°\n", latitude)
	fmt.Printf("  Declination:  %.2f°\n", solar.Declination(t))
	fmt.Printf("  Day Length:   %.2f hours\n", length)
	if length >= 24 {
		fmt.Printf("  Note:         polar day, the sun does not set\n")
	} else if length <= 0 {
		fmt.Printf("  Note:         polar night, the sun does not rise\n")
	}
}

func resolveLatitude(latStr, siteID, sitesFile string) (float64, string, error) {
	if siteID != "" {
		if sitesFile == "" {
			return 0, "", fmt.Errorf("-site requires -sites-file")
		}
		all, err := sites.Load(sitesFile)
		if err != nil {
			return 0, "", err
		}
		site, ok := sites.Find(all, siteID)
		if !ok {
			return 0, "", fmt.Errorf("site %q not found in %s", siteID, sitesFile)
		}
		return site.Latitude, fmt.Sprintf("%s (%s)", site.ID, site.Name), nil
	}

	if latStr == "" {
		return 0, "", fmt.Errorf("either -lat or -site is required")
	}
	latitude, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, "", fmt.Errorf("unparseable latitude %q", latStr)
	}
	if latitude < -90 || latitude > 90 {
		return 0, "", fmt.Errorf("latitude %g outside [-90, 90]", latitude)
	}
	return latitude, fmt.Sprintf("latitude %.4f", latitude), nil
}
