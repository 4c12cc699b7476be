package service

import (
	"sort"
	"time"

	"github.com/linkgrove/shortener/internal/models"
)

const (
	topBreakdownSize = 10
	statsWindowDays  = 30
)

// aggregateClicks folds raw click events into the derived statistics. Events
// come from the surrounding application and may miss country or device;
// such rows still count toward totals but are skipped in the breakdowns.
func aggregateClicks(totalClicks int64, events []models.ClickEvent) *models.URLStats {
	visitors := make(map[string]struct{})
	countries := make(map[string]int64)
	devices := make(map[string]int64)
	byDate := make(map[string]int64)

	cutoff := time.Now().UTC().AddDate(0, 0, -statsWindowDays)

	for _, ev := range events {
		if ev.ClickerIP != "" {
			visitors[ev.ClickerIP] = struct{}{}
		}
		if ev.Country != "" {
			countries[ev.Country]++
		}
		if ev.Device != "" {
			devices[ev.Device]++
		}
		if clickedAt := ev.ClickedAt.UTC(); !clickedAt.Before(cutoff) {
			byDate[clickedAt.Format("2006-01-02")]++
		}
	}

	return &models.URLStats{
		Clicks:       totalClicks,
		UniqueClicks: int64(len(visitors)),
		TopCountries: topEntries(countries, topBreakdownSize),
		TopDevices:   topEntries(devices, topBreakdownSize),
		ClicksByDate: dateHistogram(byDate),
	}
}

// topEntries turns a frequency map into a table sorted by descending count,
// ascending name on ties for determinism, capped at limit.
func topEntries(freq map[string]int64, limit int) []models.FrequencyEntry {
	entries := make([]models.FrequencyEntry, 0, len(freq))
	for name, count := range freq {
		entries = append(entries, models.FrequencyEntry{Name: name, Count: count})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}

	return entries
}

// dateHistogram sorts the daily counts ascending by date. YYYY-MM-DD keys
// sort chronologically as strings.
func dateHistogram(byDate map[string]int64) []models.DateCount {
	counts := make([]models.DateCount, 0, len(byDate))
	for date, count := range byDate {
		counts = append(counts, models.DateCount{Date: date, Count: count})
	}

	sort.Slice(counts, func(i, j int) bool {
		return counts[i].Date < counts[j].Date
	})

	return counts
}
