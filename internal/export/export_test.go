package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/jstittsworth/hr-optimizer/internal/dfs"
	"github.com/jstittsworth/hr-optimizer/internal/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlayers() []dfs.Player {
	return []dfs.Player{
		{Index: 0, Batter: "Aaron Judge", Team: "NYY", Matchup: dfs.NumericOf(1.25), SeasonHR: dfs.NumericOf(40), PredictScore: 70, Salary: 620000, Position: "OF"},
		{Index: 1, Batter: "Soto, Juan", Team: "NYY", Matchup: dfs.NumericOf(0.9), SeasonHR: dfs.NumericOf(25), PredictScore: 85, Salary: 560050, Position: "OF"},
		{Index: 2, Batter: "Mookie \"Mookie\" Betts", Team: "LAD", Matchup: dfs.Numeric{}, SeasonHR: dfs.NumericOf(19), PredictScore: 70},
	}
}

func TestRank(t *testing.T) {
	players := samplePlayers()
	ranked := Rank(players)

	require.Len(t, ranked, 3)
	assert.Equal(t, "Soto, Juan", ranked[0].Batter)
	// Equal scores keep ingestion order
	assert.Equal(t, "Aaron Judge", ranked[1].Batter)
	assert.Equal(t, "Mookie \"Mookie\" Betts", ranked[2].Batter)
	// Input is not reordered
	assert.Equal(t, "Aaron Judge", players[0].Batter)
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	players := samplePlayers()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, players, ingest.ScaleCents))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, len(players)+1)
	assert.Equal(t, Columns, records[0])

	for i, p := range players {
		row := records[i+1]
		assert.Equal(t, p.Batter, row[0])
		assert.Equal(t, p.Team, row[1])
		assert.Equal(t, p.Matchup, dfs.ParseNumeric(row[2]))
		assert.Equal(t, p.SeasonHR, dfs.ParseNumeric(row[3]))
	}

	assert.Equal(t, []string{"Soto, Juan", "NYY", "0.9", "25", "85", "5600.50", "OF"}, records[2])
	assert.Equal(t, "", records[3][2], "missing metric exported empty")
	assert.Equal(t, "0.00", records[3][5])
}
