package calculation

import (
	"sort"

	"github.com/noah-isme/sma-grade-engine/internal/models"
)

// Rank orders results by average, highest first, using standard competition ranking:
// equal averages share a rank and the next distinct average takes its 1-based position
// (1, 1, 3, 4). Ties are listed by student ID so output is deterministic.
// Only one result per student is expected; later duplicates are ignored.
func Rank(results []models.CalculationResult) []models.RankingEntry {
	seen := make(map[string]struct{}, len(results))
	entries := make([]models.RankingEntry, 0, len(results))
	for _, result := range results {
		if _, dup := seen[result.StudentID]; dup {
			continue
		}
		seen[result.StudentID] = struct{}{}
		entries = append(entries, models.RankingEntry{StudentID: result.StudentID, AverageValue: result.AverageValue})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].AverageValue != entries[j].AverageValue {
			return entries[i].AverageValue > entries[j].AverageValue
		}
		return entries[i].StudentID < entries[j].StudentID
	})

	for i := range entries {
		if i > 0 && entries[i].AverageValue == entries[i-1].AverageValue {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
	return entries
}

// Summarize reports count, min, max and mean of the ranked averages.
func Summarize(entries []models.RankingEntry) models.RankingSummary {
	summary := models.RankingSummary{Count: len(entries)}
	if len(entries) == 0 {
		return summary
	}
	values := make([]*float64, len(entries))
	minV, maxV := entries[0].AverageValue, entries[0].AverageValue
	for i := range entries {
		v := entries[i].AverageValue
		values[i] = &v
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	mean := Round(*OverallAverage(values))
	summary.Min = &minV
	summary.Max = &maxV
	summary.Mean = &mean
	return summary
}
