package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jstittsworth/hr-optimizer/internal/dfs"
)

// Matchup file columns
const (
	ColBatter  = "Batter"
	ColTeam    = "Tm"
	ColMatchup = "vs"
	ColHR      = "HR"
)

// Salary file columns
const (
	ColSalary   = "Salary"
	ColPosition = "Position"
)

var matchupColumns = []string{ColBatter, ColTeam, ColMatchup, ColHR}

// ParseMatchups reads a tab-delimited batter-vs-pitcher file. Rows whose vs
// or HR value cannot be read are kept with that metric missing and reported
// in the returned warnings. Columns beyond the required four are ignored.
func ParseMatchups(r io.Reader) ([]dfs.Player, []string, error) {
	reader := newReader(r, '\t')

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: matchup file is empty", dfs.ErrInvalidData)
		}
		return nil, nil, fmt.Errorf("%w: failed to read matchup header: %v", dfs.ErrInvalidData, err)
	}

	cols, missing := indexColumns(header, matchupColumns)
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: matchup file missing required columns: %s",
			dfs.ErrInvalidData, strings.Join(missing, ", "))
	}

	var (
		players  []dfs.Player
		warnings []string
		seen     = make(map[string]int)
	)

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: line %d: %v", dfs.ErrInvalidData, line, err)
		}

		batter := field(record, cols[ColBatter])
		if batter == "" {
			warnings = append(warnings, fmt.Sprintf("line %d: missing batter name, row skipped", line))
			continue
		}
		if first, dup := seen[batter]; dup {
			warnings = append(warnings, fmt.Sprintf("line %d: duplicate batter %q (first seen on line %d), row skipped", line, batter, first))
			continue
		}
		seen[batter] = line

		player := dfs.Player{
			Index:    len(players),
			Batter:   batter,
			Team:     field(record, cols[ColTeam]),
			Matchup:  dfs.ParseNumeric(field(record, cols[ColMatchup])),
			SeasonHR: dfs.ParseNumeric(field(record, cols[ColHR])),
		}

		if !player.Matchup.Valid {
			warnings = append(warnings, fmt.Sprintf("line %d: %s value %q for %s is not numeric",
				line, ColMatchup, field(record, cols[ColMatchup]), batter))
		}
		if player.SeasonHR.Valid && player.SeasonHR.Value < 0 {
			player.SeasonHR = dfs.Numeric{}
			warnings = append(warnings, fmt.Sprintf("line %d: negative %s count for %s treated as missing", line, ColHR, batter))
		} else if !player.SeasonHR.Valid {
			warnings = append(warnings, fmt.Sprintf("line %d: %s value %q for %s is not numeric",
				line, ColHR, field(record, cols[ColHR]), batter))
		}

		players = append(players, player)
	}

	return players, warnings, nil
}

func newReader(r io.Reader, comma rune) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader
}

// indexColumns maps each required column to its position in header, matching
// case-insensitively. The names it could not find are returned in order.
func indexColumns(header []string, required []string) (map[string]int, []string) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		key := strings.ToLower(name)
		if _, exists := positions[key]; !exists {
			positions[key] = i
		}
	}

	cols := make(map[string]int, len(required))
	var missing []string
	for _, name := range required {
		i, ok := positions[strings.ToLower(name)]
		if !ok {
			missing = append(missing, name)
			continue
		}
		cols[name] = i
	}
	return cols, missing
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
