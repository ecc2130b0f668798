package pipeline

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/jstittsworth/hr-optimizer/internal/dfs"
)

// Summary describes the predict score distribution of the filtered table.
type Summary struct {
	Players        int     `json:"players"`
	MissingMetrics int     `json:"missing_metrics"`
	MeanScore      float64 `json:"mean_score"`
	StdDevScore    float64 `json:"stddev_score"`
	MedianScore    float64 `json:"median_score"`
	MaxScore       int     `json:"max_score"`
}

func Summarize(players []dfs.Player) Summary {
	summary := Summary{Players: len(players)}
	if len(players) == 0 {
		return summary
	}

	scores := make([]float64, len(players))
	for i, p := range players {
		scores[i] = float64(p.PredictScore)
		if p.HasMissingMetric() {
			summary.MissingMetrics++
		}
		if p.PredictScore > summary.MaxScore {
			summary.MaxScore = p.PredictScore
		}
	}

	summary.MeanScore = stat.Mean(scores, nil)
	if len(scores) > 1 {
		summary.StdDevScore = stat.StdDev(scores, nil)
	}
	sort.Float64s(scores)
	summary.MedianScore = stat.Quantile(0.5, stat.Empirical, scores, nil)

	return summary
}
