package optimizer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/hr-optimizer/internal/dfs"
)

// DefaultMaxCells bounds the DP working set in bits: one decision bit per
// (player, count, salary) cell plus the (k+1) x width table of 64-bit scores,
// where width is the reduced salary cap plus one.
const DefaultMaxCells int64 = 500_000_000

// negInf marks a (count, salary) state no subset can reach.
const negInf = math.MinInt32

// Lineup is a selected set of exactly k players, in ingestion order. Indices
// holds each player's dfs.Player.Index.
type Lineup struct {
	Players     []string `json:"players"`
	Indices     []int    `json:"indices"`
	TotalScore  int      `json:"total_score"`
	TotalSalary int64    `json:"total_salary"`
}

// Result is the outcome of one optimization. When Feasible is false no
// k-player subset fits under the cap and Lineup is nil; that is a valid
// answer, distinct from a lineup scoring zero.
type Result struct {
	Feasible         bool    `json:"feasible"`
	Lineup           *Lineup `json:"lineup,omitempty"`
	LineupSize       int     `json:"lineup_size"`
	SalaryCap        int64   `json:"salary_cap"`
	SalaryUnit       int64   `json:"salary_unit"`
	TableWidth       int64   `json:"table_width"`
	CellsEvaluated   int64   `json:"cells_evaluated"`
	OptimizationTime int64   `json:"optimization_time_ms"`
}

// Optimizer selects the score-maximizing lineup with a cardinality
// constrained 0/1 knapsack.
type Optimizer struct {
	logger   *logrus.Entry
	maxCells int64
}

func NewOptimizer(maxCells int64) *Optimizer {
	if maxCells <= 0 {
		maxCells = DefaultMaxCells
	}
	return &Optimizer{
		logger:   logrus.WithField("component", "lineup_optimizer"),
		maxCells: maxCells,
	}
}

// Optimize runs with the default cell budget.
func Optimize(ctx context.Context, players []dfs.Player, k int, salaryCap int64) (*Result, error) {
	return NewOptimizer(DefaultMaxCells).Optimize(ctx, players, k, salaryCap)
}

// Optimize chooses exactly k players maximizing total PredictScore with total
// Salary at most salaryCap.
//
// best[j][s] holds the best score over the players seen so far using exactly
// j of them with salary at most s. Players are visited in slice order and a
// player is only taken when that is strictly better than skipping it, so
// among equal-score lineups the one avoiding later players wins. One decision
// bit per (player, j, s) is kept to rebuild the lineup.
func (o *Optimizer) Optimize(ctx context.Context, players []dfs.Player, k int, salaryCap int64) (*Result, error) {
	start := time.Now()

	if err := o.validate(players, k, salaryCap); err != nil {
		return nil, err
	}

	n := len(players)
	unit, costs, limit := reduce(players, k, salaryCap)
	if err := o.checkBudget(n, k, limit); err != nil {
		return nil, err
	}
	width := int(limit) + 1

	best := make([][]int, k+1)
	for j := range best {
		best[j] = make([]int, width)
		if j == 0 {
			continue
		}
		for s := range best[j] {
			best[j][s] = negInf
		}
	}

	words := (k*width + 63) / 64
	taken := make([][]uint64, n)

	for i, p := range players {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if p.Salary > salaryCap {
			continue
		}

		bits := make([]uint64, words)
		taken[i] = bits
		salary := int(costs[i])
		score := p.PredictScore

		top := k
		if i+1 < top {
			top = i + 1
		}
		for j := top; j >= 1; j-- {
			prev, cur := best[j-1], best[j]
			base := (j - 1) * width
			for s := width - 1; s >= salary; s-- {
				from := prev[s-salary]
				if from == negInf {
					continue
				}
				if cand := from + score; cand > cur[s] {
					cur[s] = cand
					bit := base + s
					bits[bit>>6] |= 1 << (uint(bit) & 63)
				}
			}
		}
	}

	result := &Result{
		LineupSize:       k,
		SalaryCap:        salaryCap,
		SalaryUnit:       unit,
		TableWidth:       int64(width),
		CellsEvaluated:   int64(n) * int64(k) * int64(width),
		OptimizationTime: time.Since(start).Milliseconds(),
	}

	if best[k][width-1] == negInf {
		o.logger.WithFields(logrus.Fields{
			"players":    n,
			"k":          k,
			"salary_cap": salaryCap,
		}).Info("No feasible lineup under salary cap")
		return result, nil
	}

	result.Feasible = true
	result.Lineup = reconstruct(players, costs, taken, k, width)

	o.logger.WithFields(logrus.Fields{
		"players":      n,
		"k":            k,
		"salary_cap":   salaryCap,
		"salary_unit":  unit,
		"table_width":  width,
		"total_score":  result.Lineup.TotalScore,
		"total_salary": result.Lineup.TotalSalary,
		"duration_ms":  result.OptimizationTime,
	}).Debug("Lineup optimized")

	return result, nil
}

func (o *Optimizer) validate(players []dfs.Player, k int, salaryCap int64) error {
	if k <= 0 {
		return fmt.Errorf("%w: lineup size must be positive, got %d", dfs.ErrInvalidParameter, k)
	}
	if k > len(players) {
		return fmt.Errorf("%w: lineup size %d exceeds the %d available players", dfs.ErrInvalidParameter, k, len(players))
	}
	if salaryCap < 0 {
		return fmt.Errorf("%w: salary cap must not be negative, got %d", dfs.ErrInvalidParameter, salaryCap)
	}
	for _, p := range players {
		if p.Salary < 0 {
			return fmt.Errorf("%w: negative salary for %s", dfs.ErrInvalidParameter, p.Batter)
		}
	}
	return nil
}

// reduce divides every eligible salary and the cap by the salaries' greatest
// common divisor, then narrows the cap to what the k dearest eligible players
// could cost together. Neither step changes which lineups fit. It returns the
// divisor, the reduced salary of every player and the reduced cap.
func reduce(players []dfs.Player, k int, salaryCap int64) (int64, []int64, int64) {
	var unit int64
	for _, p := range players {
		if p.Salary > 0 && p.Salary <= salaryCap {
			unit = gcd(unit, p.Salary)
		}
	}
	if unit == 0 {
		unit = 1
	}

	costs := make([]int64, len(players))
	eligible := make([]int64, 0, len(players))
	for i, p := range players {
		costs[i] = p.Salary / unit
		if p.Salary <= salaryCap {
			eligible = append(eligible, costs[i])
		}
	}

	limit := salaryCap / unit
	sort.Slice(eligible, func(a, b int) bool { return eligible[a] > eligible[b] })

	var top int64
	for i := 0; i < k && i < len(eligible); i++ {
		if eligible[i] >= limit-top {
			return unit, costs, limit
		}
		top += eligible[i]
	}
	return unit, costs, top
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// checkBudget rejects tables whose bits exceed maxCells. Checked in steps so
// the product cannot overflow.
func (o *Optimizer) checkBudget(n, k int, limit int64) error {
	perColumn := int64(n)*int64(k) + 64*int64(k+1)
	if limit >= o.maxCells || perColumn > o.maxCells/(limit+1) {
		return fmt.Errorf("%w: %d players x lineup size %d x reduced salary cap %d exceeds the optimizer budget of %d cells",
			dfs.ErrInvalidParameter, n, k, limit, o.maxCells)
	}
	return nil
}

// reconstruct walks the decision bits back from (n, k, width-1).
func reconstruct(players []dfs.Player, costs []int64, taken [][]uint64, k, width int) *Lineup {
	indices := make([]int, 0, k)
	j, s := k, width-1
	for i := len(players) - 1; i >= 0 && j > 0; i-- {
		bit := (j-1)*width + s
		if taken[i] == nil || taken[i][bit>>6]&(1<<(uint(bit)&63)) == 0 {
			continue
		}
		indices = append(indices, i)
		s -= int(costs[i])
		j--
	}

	// Back to ingestion order
	for l, r := 0, len(indices)-1; l < r; l, r = l+1, r-1 {
		indices[l], indices[r] = indices[r], indices[l]
	}

	lineup := &Lineup{
		Players: make([]string, 0, len(indices)),
		Indices: make([]int, 0, len(indices)),
	}
	for _, i := range indices {
		lineup.Players = append(lineup.Players, players[i].Batter)
		lineup.Indices = append(lineup.Indices, players[i].Index)
		lineup.TotalScore += players[i].PredictScore
		lineup.TotalSalary += players[i].Salary
	}
	return lineup
}
