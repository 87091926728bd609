package lsp

import (
	"math"
	"sort"
)

// AggregateSeasons turns per-year transition dates into growing-season
// lengths, sorted by year. Length is the whole-day span from greenup to
// dormancy and is always positive because greenup precedes dormancy.
func AggregateSeasons(dates map[int]PhenoDates) []SeasonLength {
	seasons := make([]SeasonLength, 0, len(dates))
	for year, pd := range dates {
		days := int(math.Round(pd.Dormancy.Sub(pd.Greenup).Hours() / 24))
		seasons = append(seasons, SeasonLength{Year: year, Days: days})
	}
	sort.Slice(seasons, func(i, j int) bool { return seasons[i].Year < seasons[j].Year })
	return seasons
}
