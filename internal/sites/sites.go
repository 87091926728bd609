// Package sites loads flux-tower site metadata used to annotate pipeline
// output: coordinates for day-length calculations and land-cover class for
// reports.
package sites

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Site is one flux-tower location.
type Site struct {
	ID        string
	Name      string
	Latitude  float64
	Longitude float64
	LandCover string
}

// Load reads a site metadata file with columns
// site_id,name,latitude,longitude,land_cover. A header row is recognized and
// skipped; any malformed row fails the load.
func Load(path string) ([]Site, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sites file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var sites []Site
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read sites file %s: %w", path, err)
		}
		row++

		if row == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "site_id") {
			continue
		}
		if len(record) < 4 {
			return nil, fmt.Errorf("%s: row %d: want at least site_id, name, latitude, longitude", path, row)
		}

		site := Site{
			ID:   strings.TrimSpace(record[0]),
			Name: strings.TrimSpace(record[1]),
		}
		if site.ID == "" {
			return nil, fmt.Errorf("%s: row %d: missing site_id", path, row)
		}

		site.Latitude, err = strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: unparseable latitude %q", path, row, record[2])
		}
		if site.Latitude < -90 || site.Latitude > 90 {
			return nil, fmt.Errorf("%s: row %d: latitude %g outside [-90, 90]", path, row, site.Latitude)
		}

		site.Longitude, err = strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: unparseable longitude %q", path, row, record[3])
		}
		if site.Longitude < -180 || site.Longitude > 180 {
			return nil, fmt.Errorf("%s: row %d: longitude %g outside [-180, 180]", path, row, site.Longitude)
		}

		if len(record) > 4 {
			site.LandCover = strings.TrimSpace(record[4])
		}
		sites = append(sites, site)
	}
	return sites, nil
}

// Find returns the site with the given ID.
func Find(sites []Site, id string) (Site, bool) {
	for _, s := range sites {
		if s.ID == id {
			return s, true
		}
	}
	return Site{}, false
}
