// Command hropt scores a matchup file and prints the ranked table and the
// optimal lineup without running the HTTP server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/jstittsworth/hr-optimizer/internal/export"
	"github.com/jstittsworth/hr-optimizer/internal/ingest"
	"github.com/jstittsworth/hr-optimizer/internal/optimizer"
	"github.com/jstittsworth/hr-optimizer/internal/pipeline"
	"github.com/jstittsworth/hr-optimizer/pkg/logger"
)

type options struct {
	matchups string
	salaries string
	cap      float64
	size     int
	teams    []string
	out      string
	top      int
	timeout  time.Duration
	maxCells int64
	logLevel string
}

func main() {
	var opts options
	flags := pflag.NewFlagSet("hropt", pflag.ExitOnError)
	flags.StringVarP(&opts.matchups, "matchups", "m", "", "tab-delimited matchup file (required)")
	flags.StringVarP(&opts.salaries, "salaries", "s", "", "comma-delimited salary file")
	flags.Float64Var(&opts.cap, "cap", 35000, "salary cap")
	flags.IntVarP(&opts.size, "size", "k", 9, "lineup size")
	flags.StringSliceVarP(&opts.teams, "teams", "t", nil, "teams to include (default all)")
	flags.StringVarP(&opts.out, "out", "o", "", "write the filtered table as CSV to this path")
	flags.IntVar(&opts.top, "top", 25, "rows of the ranked table to print (0 for all)")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "optimization timeout")
	flags.Int64Var(&opts.maxCells, "max-cells", optimizer.DefaultMaxCells, "optimizer cell budget")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	flags.Parse(os.Args[1:])

	if opts.matchups == "" {
		fmt.Fprintln(os.Stderr, "hropt: --matchups is required")
		flags.Usage()
		os.Exit(2)
	}

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "hropt: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, w io.Writer) error {
	log := logger.InitLogger(opts.logLevel, true)
	log.SetOutput(os.Stderr)

	req := pipeline.Request{
		TeamFilter: opts.teams,
		LineupSize: opts.size,
		SalaryCap:  opts.cap,
	}

	var err error
	if req.Matchups, err = os.ReadFile(opts.matchups); err != nil {
		return fmt.Errorf("failed to read matchup file: %w", err)
	}
	if opts.salaries != "" {
		if req.Salaries, err = os.ReadFile(opts.salaries); err != nil {
			return fmt.Errorf("failed to read salary file: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	p := pipeline.New(optimizer.NewOptimizer(opts.maxCells), log)
	report, err := p.Run(ctx, req)
	if err != nil {
		return err
	}

	printReport(w, report, opts.top)

	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", opts.out, err)
		}
		defer f.Close()
		if err := export.WriteCSV(f, report.Players, report.SalaryScale); err != nil {
			return err
		}
		fmt.Fprintf(w, "\nWrote %d rows to %s\n", len(report.Players), opts.out)
	}
	return nil
}

func printReport(w io.Writer, report *pipeline.Report, top int) {
	fmt.Fprintf(w, "Teams: %s\n\n", strings.Join(report.SelectedTeams, ", "))

	rows := report.Players
	if top > 0 && len(rows) > top {
		rows = rows[:top]
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(export.Columns, "\t"))
	for _, p := range rows {
		fmt.Fprintln(tw, strings.Join(export.Row(p, report.SalaryScale), "\t"))
	}
	tw.Flush()

	if len(rows) < len(report.Players) {
		fmt.Fprintf(w, "... %d more\n", len(report.Players)-len(rows))
	}

	fmt.Fprintln(w)
	if report.Lineup.Feasible {
		fmt.Fprintf(w, "Optimal lineup (%d players)\n", len(report.Lineup.Players))
		fmt.Fprintf(w, "  Total score:  %d\n", report.Lineup.TotalScore)
		fmt.Fprintf(w, "  Total salary: %s\n",
			ingest.FormatSalary(report.Optimization.Lineup.TotalSalary, report.SalaryScale))
		for _, name := range report.Lineup.Players {
			fmt.Fprintf(w, "  - %s\n", name)
		}
	} else {
		fmt.Fprintln(w, report.Lineup.Message)
	}

	if len(report.Warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings (%d):\n", len(report.Warnings))
		for _, warning := range report.Warnings {
			fmt.Fprintf(w, "  %s\n", warning)
		}
	}
}
