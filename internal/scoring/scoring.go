// Package scoring turns raw matchup metrics into the bounded home run
// predict score used to rank and select batters.
package scoring

import (
	"fmt"
	"math"

	"github.com/jstittsworth/hr-optimizer/internal/dfs"
)

// Blend weights for the predict score.
const (
	MatchupWeight = 0.7
	HRWeight      = 0.3

	MaxScore = 100
)

// columnRange is the min/max of one metric over the values that parsed.
type columnRange struct {
	min, max float64
	ok       bool
}

func rangeOf(players []dfs.Player, metric func(dfs.Player) dfs.Numeric) columnRange {
	var r columnRange
	for _, p := range players {
		v := metric(p)
		if !v.Valid {
			continue
		}
		if !r.ok {
			r = columnRange{min: v.Value, max: v.Value, ok: true}
			continue
		}
		r.min = math.Min(r.min, v.Value)
		r.max = math.Max(r.max, v.Value)
	}
	return r
}

// normalize maps v into [0,1]. A missing value or a constant column
// normalizes to 0.
func (r columnRange) normalize(v dfs.Numeric) float64 {
	if !v.Valid || !r.ok || r.max == r.min {
		return 0
	}
	n := (v.Value - r.min) / (r.max - r.min)
	return math.Max(0, math.Min(1, n))
}

// Score blends the normalized metrics into an integer in [0,100]. Halves
// round away from zero (math.Round).
func Score(matchupNorm, hrNorm float64) int {
	raw := MaxScore * (MatchupWeight*matchupNorm + HRWeight*hrNorm)
	score := int(math.Round(raw))
	if score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// Normalize returns a copy of players with MatchupNorm, HRNorm and
// PredictScore populated. Min and max are taken over the whole batch, so
// callers normalize before applying any team filter.
func Normalize(players []dfs.Player) ([]dfs.Player, error) {
	if len(players) == 0 {
		return nil, fmt.Errorf("%w: no players to score", dfs.ErrInvalidData)
	}

	matchup := rangeOf(players, func(p dfs.Player) dfs.Numeric { return p.Matchup })
	hr := rangeOf(players, func(p dfs.Player) dfs.Numeric { return p.SeasonHR })

	scored := make([]dfs.Player, len(players))
	for i, p := range players {
		p.MatchupNorm = matchup.normalize(p.Matchup)
		p.HRNorm = hr.normalize(p.SeasonHR)
		p.PredictScore = Score(p.MatchupNorm, p.HRNorm)
		scored[i] = p
	}
	return scored, nil
}
