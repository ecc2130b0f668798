package ingest

import (
	"strings"
	"testing"

	"github.com/jstittsworth/hr-optimizer/internal/dfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const matchupTSV = "Batter\tTm\tPA\tvs\tHR\n" +
	"Aaron Judge\tNYY\t30\t1.250\t40\n" +
	"Juan Soto\tNYY\t22\t.900\t25\n" +
	"Mookie Betts\tLAD\t18\tn/a\t19\n" +
	"Shohei Ohtani\tLAD\t25\t1.100\tabc\n"

func TestParseMatchups(t *testing.T) {
	players, warnings, err := ParseMatchups(strings.NewReader(matchupTSV))
	require.NoError(t, err)
	require.Len(t, players, 4)

	assert.Equal(t, "Aaron Judge", players[0].Batter)
	assert.Equal(t, "NYY", players[0].Team)
	assert.Equal(t, dfs.NumericOf(1.25), players[0].Matchup)
	assert.Equal(t, dfs.NumericOf(40), players[0].SeasonHR)
	assert.Equal(t, 0.9, players[1].Matchup.Value)

	// Unparsable metrics keep the row and mark the field missing
	assert.False(t, players[2].Matchup.Valid)
	assert.True(t, players[2].SeasonHR.Valid)
	assert.False(t, players[3].SeasonHR.Valid)
	assert.Len(t, warnings, 2)

	for i, p := range players {
		assert.Equal(t, i, p.Index)
	}
}

func TestParseMatchups_MissingColumn(t *testing.T) {
	_, _, err := ParseMatchups(strings.NewReader("Batter\tTm\tHR\nA\tNYY\t3\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, dfs.ErrInvalidData)
	assert.Contains(t, err.Error(), "vs")
}

func TestParseMatchups_Empty(t *testing.T) {
	_, _, err := ParseMatchups(strings.NewReader(""))
	assert.ErrorIs(t, err, dfs.ErrInvalidData)
}

func TestParseMatchups_DuplicateAndNegative(t *testing.T) {
	input := "batter\ttm\tvs\thr\n" +
		"A\tNYY\t1\t-2\n" +
		"A\tBOS\t2\t3\n" +
		"\tBOS\t2\t3\n"
	players, warnings, err := ParseMatchups(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, "NYY", players[0].Team)
	assert.False(t, players[0].SeasonHR.Valid, "negative home run counts are missing")
	assert.Len(t, warnings, 3)
}

func TestParseSalaries_SchemaError(t *testing.T) {
	_, _, _, err := ParseSalaries(strings.NewReader("Batter,Salary\nA,5000\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, dfs.ErrSchema)
	assert.Contains(t, err.Error(), "Position")
}

func TestParseSalaries_Scale(t *testing.T) {
	rows, scale, warnings, err := ParseSalaries(strings.NewReader("Batter,Salary,Position\nA,\"$5,000\",OF\nB,4500.00,1B\n"))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, ScaleUnits, scale)
	assert.Equal(t, 5000.0, rows[0].Amount)

	_, scale, _, err = ParseSalaries(strings.NewReader("Batter,Salary,Position\nA,5000,OF\nB,4500.50,1B\n"))
	require.NoError(t, err)
	assert.Equal(t, ScaleCents, scale)
}

func TestParseSalaries_BadAmount(t *testing.T) {
	rows, _, warnings, err := ParseSalaries(strings.NewReader("Batter,Salary,Position\nA,free,OF\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 0.0, rows[0].Amount)
	assert.Len(t, warnings, 1)
}

func TestLoad_MergesSalaries(t *testing.T) {
	salaries := "Batter,Salary,Position\n" +
		"Juan Soto,5600.50,OF\n" +
		"Aaron Judge,6200,OF\n" +
		"Nobody,3000,C\n"

	roster, err := Load(strings.NewReader(matchupTSV), strings.NewReader(salaries))
	require.NoError(t, err)

	assert.Equal(t, ScaleCents, roster.SalaryScale)
	assert.Equal(t, int64(620000), roster.Players[0].Salary)
	assert.Equal(t, int64(560050), roster.Players[1].Salary)
	assert.Equal(t, "OF", roster.Players[1].Position)

	// No salary row: defaults to zero and no position
	assert.Equal(t, int64(0), roster.Players[2].Salary)
	assert.Equal(t, "", roster.Players[2].Position)
	assert.Contains(t, roster.Warnings, "1 salary rows did not match any batter")
}

func TestLoad_SchemaErrorAbortsMerge(t *testing.T) {
	roster, err := Load(strings.NewReader(matchupTSV), strings.NewReader("Name,Salary,Position\nA,1,C\n"))
	assert.Nil(t, roster)
	assert.ErrorIs(t, err, dfs.ErrSchema)
}

func TestLoadBytes_EmptyMatchups(t *testing.T) {
	_, err := LoadBytes([]byte("  \n"), nil)
	assert.ErrorIs(t, err, dfs.ErrInvalidData)
}

func TestScaleCap(t *testing.T) {
	units, err := ScaleCap(35000, ScaleUnits)
	require.NoError(t, err)
	assert.Equal(t, int64(35000), units)

	units, err = ScaleCap(35000.555, ScaleCents)
	require.NoError(t, err)
	assert.Equal(t, int64(3500055), units, "cap rounds down")

	units, err = ScaleCap(35000.9, ScaleUnits)
	require.NoError(t, err)
	assert.Equal(t, int64(35000), units)

	_, err = ScaleCap(-1, ScaleUnits)
	assert.ErrorIs(t, err, dfs.ErrInvalidParameter)
}

func TestFormatSalary(t *testing.T) {
	assert.Equal(t, "5000", FormatSalary(5000, ScaleUnits))
	assert.Equal(t, "5600.50", FormatSalary(560050, ScaleCents))
	assert.Equal(t, "0.05", FormatSalary(5, ScaleCents))
	assert.Equal(t, 5600.5, SalaryAmount(560050, ScaleCents))
}
