// Package export renders scored players as the ranked table and its CSV
// download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/jstittsworth/hr-optimizer/internal/dfs"
	"github.com/jstittsworth/hr-optimizer/internal/ingest"
)

// FileName is the suggested name for the CSV download.
const FileName = "filtered_hr_predictions.csv"

// Columns of the ranked table and CSV export.
var Columns = []string{
	ingest.ColBatter,
	ingest.ColTeam,
	ingest.ColMatchup,
	ingest.ColHR,
	"HR_Predict_Score",
	ingest.ColSalary,
	ingest.ColPosition,
}

// Rank returns a copy of players ordered by predict score, highest first.
// Equal scores keep ingestion order.
func Rank(players []dfs.Player) []dfs.Player {
	ranked := make([]dfs.Player, len(players))
	copy(ranked, players)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PredictScore > ranked[j].PredictScore
	})
	return ranked
}

// Row renders one player as CSV fields in Columns order. Missing metrics are
// written as empty fields.
func Row(p dfs.Player, salaryScale int64) []string {
	return []string{
		p.Batter,
		p.Team,
		p.Matchup.String(),
		p.SeasonHR.String(),
		strconv.Itoa(p.PredictScore),
		ingest.FormatSalary(p.Salary, salaryScale),
		p.Position,
	}
}

// WriteCSV writes the header and one row per player, in the given order.
func WriteCSV(w io.Writer, players []dfs.Player, salaryScale int64) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, p := range players {
		if err := writer.Write(Row(p, salaryScale)); err != nil {
			return fmt.Errorf("failed to write csv row for %s: %w", p.Batter, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
