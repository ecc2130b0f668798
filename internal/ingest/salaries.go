package ingest

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/jstittsworth/hr-optimizer/internal/dfs"
)

// Salary scales. Whole-unit files optimize in currency units; a file with
// any fractional salary optimizes in cents.
const (
	ScaleUnits int64 = 1
	ScaleCents int64 = 100
)

var salaryColumns = []string{ColBatter, ColSalary, ColPosition}

// SalaryRow is one parsed line of the salary file. Amount is in the file's
// currency, before scaling.
type SalaryRow struct {
	Batter   string
	Amount   float64
	Position string
}

// ParseSalaries reads a comma-delimited salary file and chooses the salary
// scale from the precision it finds. A missing required column is fatal;
// unreadable amounts are recovered as zero with a warning.
func ParseSalaries(r io.Reader) ([]SalaryRow, int64, []string, error) {
	reader := newReader(r, ',')

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ScaleUnits, nil, fmt.Errorf("%w: salary file is empty", dfs.ErrSchema)
		}
		return nil, ScaleUnits, nil, fmt.Errorf("%w: failed to read salary header: %v", dfs.ErrSchema, err)
	}

	cols, missing := indexColumns(header, salaryColumns)
	if len(missing) > 0 {
		return nil, ScaleUnits, nil, fmt.Errorf("%w: salary file missing required columns: %s",
			dfs.ErrSchema, strings.Join(missing, ", "))
	}

	var (
		rows     []SalaryRow
		warnings []string
		scale    = ScaleUnits
	)

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, ScaleUnits, nil, fmt.Errorf("%w: line %d: %v", dfs.ErrSchema, line, err)
		}

		batter := field(record, cols[ColBatter])
		if batter == "" {
			warnings = append(warnings, fmt.Sprintf("salary line %d: missing batter name, row skipped", line))
			continue
		}

		raw := field(record, cols[ColSalary])
		amount, fractional, ok := parseAmount(raw)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("salary line %d: salary %q for %s is not a valid amount, using 0", line, raw, batter))
			amount = 0
		}
		if fractional {
			scale = ScaleCents
		}

		rows = append(rows, SalaryRow{
			Batter:   batter,
			Amount:   amount,
			Position: field(record, cols[ColPosition]),
		})
	}

	return rows, scale, warnings, nil
}

// parseAmount accepts "5000", "$5,000" and "5000.50". fractional reports a
// non-zero fractional part.
func parseAmount(raw string) (amount float64, fractional bool, ok bool) {
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(raw)
	if clean == "" {
		return 0, false, false
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false, false
	}
	if dot := strings.IndexByte(clean, '.'); dot >= 0 {
		fractional = strings.Trim(clean[dot+1:], "0") != ""
	}
	return v, fractional, true
}

// ToUnits converts a currency amount to scaled salary units, rounding to the
// nearest unit.
func ToUnits(amount float64, scale int64) int64 {
	return int64(math.Round(amount * float64(scale)))
}

// ScaleCap converts a salary cap to scaled units. It rounds down so scaling
// never loosens the constraint.
func ScaleCap(salaryCap float64, scale int64) (int64, error) {
	if math.IsNaN(salaryCap) || math.IsInf(salaryCap, 0) {
		return 0, fmt.Errorf("%w: salary cap must be a finite number", dfs.ErrInvalidParameter)
	}
	if salaryCap < 0 {
		return 0, fmt.Errorf("%w: salary cap must not be negative, got %v", dfs.ErrInvalidParameter, salaryCap)
	}
	return int64(math.Floor(salaryCap*float64(scale) + 1e-9)), nil
}

// FormatSalary renders scaled units back in currency.
func FormatSalary(units, scale int64) string {
	if scale == ScaleCents {
		sign := ""
		if units < 0 {
			sign = "-"
			units = -units
		}
		return fmt.Sprintf("%s%d.%02d", sign, units/ScaleCents, units%ScaleCents)
	}
	return strconv.FormatInt(units*scale, 10)
}
