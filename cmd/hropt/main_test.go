package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstittsworth/hr-optimizer/internal/dfs"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_PrintsLineupAndWritesCSV(t *testing.T) {
	dir := t.TempDir()
	opts := options{
		matchups: writeFile(t, dir, "matchups.tsv", "Batter\tTm\tvs\tHR\nA\tNYY\t1.0\t30\nB\tNYY\t0.5\t20\nC\tBOS\t0.0\t10\n"),
		salaries: writeFile(t, dir, "salaries.csv", "Batter,Salary,Position\nA,5000.50,OF\nB,4000,1B\nC,3000,C\n"),
		cap:      9000.50,
		size:     2,
		out:      filepath.Join(dir, "out.csv"),
		top:      1,
		timeout:  time.Minute,
		maxCells: 1_000_000_000,
		logLevel: "error",
	}

	var buf bytes.Buffer
	require.NoError(t, run(opts, &buf))

	out := buf.String()
	assert.Contains(t, out, "Optimal lineup (2 players)")
	assert.Contains(t, out, "Total score:  150")
	assert.Contains(t, out, "Total salary: 9000.50")
	assert.Contains(t, out, "... 2 more")

	f, err := os.Open(opts.out)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestRun_InvalidParameter(t *testing.T) {
	dir := t.TempDir()
	opts := options{
		matchups: writeFile(t, dir, "m.tsv", "Batter\tTm\tvs\tHR\nA\tNYY\t1\t3\n"),
		cap:      100,
		size:     2,
		timeout:  time.Minute,
		maxCells: 1000,
		logLevel: "error",
	}

	err := run(opts, &bytes.Buffer{})
	assert.ErrorIs(t, err, dfs.ErrInvalidParameter)
}
