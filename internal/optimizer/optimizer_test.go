package optimizer

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"testing"

	"github.com/jstittsworth/hr-optimizer/internal/dfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePlayers(scores []int, salaries []int64) []dfs.Player {
	players := make([]dfs.Player, len(scores))
	for i := range scores {
		players[i] = dfs.Player{
			Index:        i,
			Batter:       fmt.Sprintf("P%d", i),
			PredictScore: scores[i],
			Salary:       salaries[i],
		}
	}
	return players
}

// bruteForce enumerates every k-subset. Among equal scores the smaller
// membership mask wins, i.e. the subset avoiding the latest differing player.
func bruteForce(players []dfs.Player, k int, salaryCap int64) (bool, int, uint) {
	n := len(players)
	bestScore, bestMask, found := -1, uint(0), false
	for mask := uint(0); mask < 1<<uint(n); mask++ {
		count, score, salary := 0, 0, int64(0)
		for i := 0; i < n; i++ {
			if mask&(1<<uint(i)) != 0 {
				count++
				score += players[i].PredictScore
				salary += players[i].Salary
			}
		}
		if count != k || salary > salaryCap {
			continue
		}
		if !found || score > bestScore || (score == bestScore && mask < bestMask) {
			bestScore, bestMask, found = score, mask, true
		}
	}
	return found, bestScore, bestMask
}

func maskOf(lineup *Lineup) uint {
	var mask uint
	for _, i := range lineup.Indices {
		mask |= 1 << uint(i)
	}
	return mask
}

func TestOptimize_ExactCapIsFeasible(t *testing.T) {
	players := []dfs.Player{
		{Index: 0, Batter: "A", PredictScore: 90, Salary: 5000},
		{Index: 1, Batter: "B", PredictScore: 80, Salary: 4000},
		{Index: 2, Batter: "C", PredictScore: 70, Salary: 3000},
	}

	result, err := Optimize(context.Background(), players, 2, 9000)
	require.NoError(t, err)
	require.True(t, result.Feasible)
	assert.Equal(t, []string{"A", "B"}, result.Lineup.Players)
	assert.Equal(t, 170, result.Lineup.TotalScore)
	assert.Equal(t, int64(9000), result.Lineup.TotalSalary)
}

func TestOptimize_CapBelowBestPair(t *testing.T) {
	players := makePlayers([]int{90, 80, 70}, []int64{5000, 4000, 3000})

	result, err := Optimize(context.Background(), players, 2, 8999)
	require.NoError(t, err)
	require.True(t, result.Feasible)
	assert.Equal(t, []string{"P0", "P2"}, result.Lineup.Players)
	assert.Equal(t, 160, result.Lineup.TotalScore)
}

func TestOptimize_Infeasible(t *testing.T) {
	players := makePlayers([]int{90, 80, 70}, []int64{5000, 4000, 3000})

	// The two cheapest players cost 7000
	result, err := Optimize(context.Background(), players, 2, 6999)
	require.NoError(t, err)
	assert.False(t, result.Feasible)
	assert.Nil(t, result.Lineup)
}

func TestOptimize_ZeroScoreLineupIsStillAnAnswer(t *testing.T) {
	players := makePlayers([]int{0, 0, 0}, []int64{0, 0, 0})

	result, err := Optimize(context.Background(), players, 3, 0)
	require.NoError(t, err)
	require.True(t, result.Feasible)
	assert.Equal(t, 0, result.Lineup.TotalScore)
	assert.Len(t, result.Lineup.Players, 3)
}

func TestOptimize_InvalidParameters(t *testing.T) {
	players := makePlayers([]int{10, 20}, []int64{1, 1})
	ctx := context.Background()

	tests := []struct {
		name string
		k    int
		cap  int64
	}{
		{"zero lineup size", 0, 10},
		{"negative lineup size", -1, 10},
		{"lineup larger than pool", 3, 10},
		{"negative cap", 1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Optimize(ctx, players, tt.k, tt.cap)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, dfs.ErrInvalidParameter)
		})
	}
}

func TestOptimize_NegativeSalary(t *testing.T) {
	players := makePlayers([]int{10, 20}, []int64{1, -5})
	_, err := Optimize(context.Background(), players, 1, 10)
	assert.ErrorIs(t, err, dfs.ErrInvalidParameter)
}

func TestOptimize_CellBudget(t *testing.T) {
	opt := NewOptimizer(100_000)
	ctx := context.Background()

	// Two dearest players cost 400, so the table is 401 wide:
	// (3*2 + 64*3) * 401 = 79398 bits
	players := makePlayers([]int{10, 20, 30}, []int64{101, 150, 250})
	result, err := opt.Optimize(ctx, players, 2, 5000)
	require.NoError(t, err)
	require.True(t, result.Feasible)
	assert.Equal(t, int64(401), result.TableWidth)
	assert.Equal(t, int64(3*2*401), result.CellsEvaluated)
	assert.Equal(t, []string{"P1", "P2"}, result.Lineup.Players)

	// 4001 wide is 792198 bits
	players = makePlayers([]int{10, 20, 30}, []int64{1001, 1500, 2500})
	_, err = opt.Optimize(ctx, players, 2, 5000)
	assert.ErrorIs(t, err, dfs.ErrInvalidParameter)
}

func TestOptimize_HugeCapSmallRoster(t *testing.T) {
	players := makePlayers([]int{40, 90, 10, 70, 20}, []int64{3100, 4250, 5075, 6001, 2999})

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	result, err := Optimize(context.Background(), players, 1, 99_999_999)

	runtime.ReadMemStats(&after)
	require.NoError(t, err)
	require.True(t, result.Feasible)
	assert.Equal(t, []string{"P1"}, result.Lineup.Players)
	assert.Equal(t, int64(99_999_999), result.SalaryCap)
	assert.Equal(t, int64(6002), result.TableWidth)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(16<<20))
}

func TestOptimize_CommonSalaryDivisor(t *testing.T) {
	// Cent salaries in steps of 50 reduce by 50
	players := makePlayers([]int{90, 80, 70}, []int64{500050, 400000, 300000})
	result, err := Optimize(context.Background(), players, 2, 900049)
	require.NoError(t, err)
	require.True(t, result.Feasible)
	assert.Equal(t, int64(50), result.SalaryUnit)
	assert.Equal(t, []string{"P0", "P2"}, result.Lineup.Players)
	assert.Equal(t, int64(800050), result.Lineup.TotalSalary)

	result, err = Optimize(context.Background(), players, 2, 900050)
	require.NoError(t, err)
	assert.Equal(t, []string{"P0", "P1"}, result.Lineup.Players)
}

func TestOptimize_ScaledSalariesPickSameLineup(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	ctx := context.Background()

	for iter := 0; iter < 200; iter++ {
		n := 1 + rng.Intn(12)
		k := 1 + rng.Intn(n)
		scores := make([]int, n)
		salaries := make([]int64, n)
		scaled := make([]int64, n)
		for i := 0; i < n; i++ {
			scores[i] = rng.Intn(6) * 5
			salaries[i] = int64(rng.Intn(8))
			scaled[i] = salaries[i] * 50
		}
		salaryCap := int64(rng.Intn(30))

		plain, err := Optimize(ctx, makePlayers(scores, salaries), k, salaryCap)
		require.NoError(t, err)
		// Any remainder below one step must not loosen the cap
		wide, err := Optimize(ctx, makePlayers(scores, scaled), k, salaryCap*50+49)
		require.NoError(t, err)

		msg := fmt.Sprintf("iter %d: scores=%v salaries=%v k=%d cap=%d", iter, scores, salaries, k, salaryCap)
		require.Equal(t, plain.Feasible, wide.Feasible, msg)
		if !plain.Feasible {
			continue
		}
		assert.Equal(t, plain.Lineup.Indices, wide.Lineup.Indices, msg)
		assert.Equal(t, plain.Lineup.TotalSalary*50, wide.Lineup.TotalSalary, msg)
		assert.LessOrEqual(t, wide.TableWidth, plain.TableWidth, msg)
	}
}

func TestOptimize_TieBreakPrefersEarlierPlayers(t *testing.T) {
	// Equal scores everywhere: the first k players win
	players := makePlayers([]int{50, 50, 50, 50}, []int64{1, 1, 1, 1})
	result, err := Optimize(context.Background(), players, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"P0", "P1"}, result.Lineup.Players)

	// {P0,P3} and {P1,P2} both score 40 at salary 4; the lineup that avoids
	// the later P3 wins.
	players = makePlayers([]int{10, 20, 20, 30}, []int64{1, 2, 2, 3})
	result, err = Optimize(context.Background(), players, 2, 4)
	require.NoError(t, err)
	require.True(t, result.Feasible)
	assert.Equal(t, 40, result.Lineup.TotalScore)
	assert.Equal(t, []string{"P1", "P2"}, result.Lineup.Players)
}

func TestOptimize_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	scores := make([]int, 40)
	salaries := make([]int64, 40)
	for i := range scores {
		scores[i] = rng.Intn(4) * 10
		salaries[i] = int64(1 + rng.Intn(5))
	}
	players := makePlayers(scores, salaries)

	first, err := Optimize(context.Background(), players, 9, 20)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Optimize(context.Background(), players, 9, 20)
		require.NoError(t, err)
		assert.Equal(t, first.Lineup, again.Lineup)
	}
}

func TestOptimize_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(2024))
	ctx := context.Background()

	for iter := 0; iter < 400; iter++ {
		n := 1 + rng.Intn(12)
		k := 1 + rng.Intn(n)
		scores := make([]int, n)
		salaries := make([]int64, n)
		for i := 0; i < n; i++ {
			// Narrow ranges force plenty of ties
			scores[i] = rng.Intn(6) * 5
			salaries[i] = int64(rng.Intn(8))
		}
		salaryCap := int64(rng.Intn(30))
		players := makePlayers(scores, salaries)

		found, bestScore, bestMask := bruteForce(players, k, salaryCap)
		result, err := Optimize(ctx, players, k, salaryCap)
		require.NoError(t, err)

		msg := fmt.Sprintf("iter %d: scores=%v salaries=%v k=%d cap=%d", iter, scores, salaries, k, salaryCap)
		require.Equal(t, found, result.Feasible, msg)
		if !found {
			continue
		}
		assert.Equal(t, bestScore, result.Lineup.TotalScore, msg)
		assert.Equal(t, bestMask, maskOf(result.Lineup), msg)
		assert.Len(t, result.Lineup.Players, k, msg)
		assert.LessOrEqual(t, result.Lineup.TotalSalary, salaryCap, msg)
	}
}

func TestOptimize_SkipsPlayersOverCap(t *testing.T) {
	players := makePlayers([]int{100, 10, 20}, []int64{50, 1, 1})
	result, err := Optimize(context.Background(), players, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2"}, result.Lineup.Players)
}

func TestOptimize_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	players := makePlayers([]int{10, 20}, []int64{1, 1})
	_, err := Optimize(ctx, players, 1, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func BenchmarkOptimize_FullSlate(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	n := 150
	scores := make([]int, n)
	salaries := make([]int64, n)
	for i := range scores {
		scores[i] = rng.Intn(101)
		salaries[i] = int64(2000 + rng.Intn(4000))
	}
	players := makePlayers(scores, salaries)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Optimize(context.Background(), players, 9, 35000); err != nil {
			b.Fatal(err)
		}
	}
}
