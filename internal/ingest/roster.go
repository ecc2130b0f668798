package ingest

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jstittsworth/hr-optimizer/internal/dfs"
)

// Roster is one ingestion batch: the matchup rows merged with salaries and
// positions, in file order.
type Roster struct {
	Players     []dfs.Player `json:"players"`
	SalaryScale int64        `json:"salary_scale"`
	Warnings    []string     `json:"warnings,omitempty"`
}

// Load parses the matchup file and, when salaries is non-nil, merges the
// salary file into it. Salary or schema problems abort the whole load; no
// partial merge is returned.
func Load(matchups io.Reader, salaries io.Reader) (*Roster, error) {
	players, warnings, err := ParseMatchups(matchups)
	if err != nil {
		return nil, err
	}

	roster := &Roster{
		Players:     players,
		SalaryScale: ScaleUnits,
		Warnings:    warnings,
	}

	if salaries == nil {
		return roster, nil
	}

	rows, scale, salaryWarnings, err := ParseSalaries(salaries)
	if err != nil {
		return nil, err
	}
	roster.SalaryScale = scale
	roster.Warnings = append(roster.Warnings, salaryWarnings...)
	roster.Warnings = append(roster.Warnings, merge(roster.Players, rows, scale)...)

	return roster, nil
}

// LoadBytes is Load over in-memory uploads. A nil or empty salaries slice
// means no salary file was supplied.
func LoadBytes(matchups, salaries []byte) (*Roster, error) {
	if len(bytes.TrimSpace(matchups)) == 0 {
		return nil, fmt.Errorf("%w: matchup file is empty", dfs.ErrInvalidData)
	}
	var salaryReader io.Reader
	if len(salaries) > 0 {
		salaryReader = bytes.NewReader(salaries)
	}
	return Load(bytes.NewReader(matchups), salaryReader)
}

func merge(players []dfs.Player, rows []SalaryRow, scale int64) []string {
	byBatter := make(map[string]int, len(players))
	for i, p := range players {
		byBatter[p.Batter] = i
	}

	var warnings []string
	assigned := make(map[string]bool, len(rows))
	unmatched := 0
	for _, row := range rows {
		i, ok := byBatter[row.Batter]
		if !ok {
			unmatched++
			continue
		}
		if assigned[row.Batter] {
			warnings = append(warnings, fmt.Sprintf("duplicate salary row for %s ignored", row.Batter))
			continue
		}
		assigned[row.Batter] = true
		players[i].Salary = ToUnits(row.Amount, scale)
		players[i].Position = row.Position
	}

	if unmatched > 0 {
		warnings = append(warnings, fmt.Sprintf("%d salary rows did not match any batter", unmatched))
	}
	return warnings
}

// SalaryAmount converts scaled units to currency for display.
func SalaryAmount(units, scale int64) float64 {
	if scale <= 0 {
		scale = ScaleUnits
	}
	return float64(units) / float64(scale)
}
