package dfs

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Numeric is a parsed numeric field. Valid is false when the source text
// could not be read as a finite number; such values take no part in column
// statistics.
type Numeric struct {
	Value float64
	Valid bool
}

// NumericOf returns a valid Numeric holding v.
func NumericOf(v float64) Numeric {
	return Numeric{Value: v, Valid: true}
}

// ParseNumeric coerces s to a number. Blank, unparsable and non-finite input
// yields a missing value.
func ParseNumeric(s string) Numeric {
	s = strings.TrimSpace(s)
	if s == "" {
		return Numeric{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Numeric{}
	}
	return NumericOf(v)
}

// String formats the value the way it is written to CSV; missing is empty.
func (n Numeric) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

func (n Numeric) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func (n *Numeric) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*n = Numeric{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = NumericOf(v)
	return nil
}

// Player is one batter row of an ingestion batch. Index is the position in
// the matchup file and drives the optimizer's tie-break.
type Player struct {
	Index    int     `json:"index"`
	Batter   string  `json:"batter"`
	Team     string  `json:"team"`
	Matchup  Numeric `json:"vs"`
	SeasonHR Numeric `json:"hr"`

	// Derived by the score normalizer
	MatchupNorm  float64 `json:"vs_norm"`
	HRNorm       float64 `json:"hr_norm"`
	PredictScore int     `json:"hr_predict_score"`

	// Salary is in scaled integer units; see ingest.Roster.SalaryScale.
	Salary   int64  `json:"salary"`
	Position string `json:"position"`
}

// HasMissingMetric reports whether either scoring input failed to parse.
func (p Player) HasMissingMetric() bool {
	return !p.Matchup.Valid || !p.SeasonHR.Valid
}
