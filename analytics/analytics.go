// Package analytics summarizes stored applications for the admin dashboard.
package analytics

import (
	"math"
	"sort"

	"github.com/mbolis/quick-apply/model"
)

const dayLayout = "2006-01-02"

// Summarize aggregates apps. A score at or above passScore counts as a pass.
func Summarize(apps []model.Application, passScore int) model.Summary {
	s := model.Summary{
		Total:     len(apps),
		PassScore: passScore,
		ByScorer:  map[string]int{},
	}

	byRole := map[string]int{}
	byQualification := map[string]int{}
	byState := map[string]int{}
	daily := map[string]int{}
	total := 0

	for _, a := range apps {
		if a.Qualified() {
			s.Qualified++
		} else {
			s.NotQualified++
		}
		if a.Score >= passScore {
			s.Pass++
		} else {
			s.Fail++
		}
		total += a.Score

		byRole[labelOr(a.JobRole)]++
		byQualification[labelOr(a.Qualification)]++
		byState[labelOr(a.State)]++
		if !a.CreatedAt.IsZero() {
			daily[a.CreatedAt.UTC().Format(dayLayout)]++
		}
		if a.Scorer != "" {
			s.ByScorer[a.Scorer]++
		}
	}

	if s.Total > 0 {
		s.AverageScore = math.Round(float64(total)/float64(s.Total)*10) / 10
	}
	s.ByRole = byCount(byRole)
	s.ByQualification = byCount(byQualification)
	s.ByState = byCount(byState)
	s.Daily = byLabel(daily)
	return s
}

func labelOr(v string) string {
	if v == "" {
		return "Unknown"
	}
	return v
}

// byCount sorts by descending count, then label.
func byCount(m map[string]int) []model.Count {
	counts := toCounts(m)
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Value != counts[j].Value {
			return counts[i].Value > counts[j].Value
		}
		return counts[i].Label < counts[j].Label
	})
	return counts
}

func byLabel(m map[string]int) []model.Count {
	counts := toCounts(m)
	sort.Slice(counts, func(i, j int) bool { return counts[i].Label < counts[j].Label })
	return counts
}

func toCounts(m map[string]int) []model.Count {
	counts := make([]model.Count, 0, len(m))
	for label, n := range m {
		counts = append(counts, model.Count{Label: label, Value: n})
	}
	return counts
}
