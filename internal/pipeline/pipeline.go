// Package pipeline runs one ingestion -> scoring -> optimization pass over
// an immutable request snapshot.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/hr-optimizer/internal/dfs"
	"github.com/jstittsworth/hr-optimizer/internal/export"
	"github.com/jstittsworth/hr-optimizer/internal/ingest"
	"github.com/jstittsworth/hr-optimizer/internal/optimizer"
	"github.com/jstittsworth/hr-optimizer/internal/scoring"
)

// Request carries everything a run needs. Salaries is nil when no salary
// file was uploaded; an empty TeamFilter selects every team.
type Request struct {
	Matchups   []byte   `json:"-"`
	Salaries   []byte   `json:"-"`
	TeamFilter []string `json:"teams"`
	LineupSize int      `json:"lineup_size"`
	SalaryCap  float64  `json:"salary_cap"`
}

// LineupReport is the optimizer block shown to the user, with salaries back
// in currency.
type LineupReport struct {
	Feasible    bool     `json:"feasible"`
	Players     []string `json:"players,omitempty"`
	TotalScore  int      `json:"total_score"`
	TotalSalary float64  `json:"total_salary"`
	Message     string   `json:"message,omitempty"`
}

// Report is the full output of one run.
type Report struct {
	RunID     string    `json:"run_id"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`

	LineupSize    int      `json:"lineup_size"`
	SalaryCap     float64  `json:"salary_cap"`
	Teams         []string `json:"teams"`
	SelectedTeams []string `json:"selected_teams"`

	// Players is the filtered table ranked by predict score.
	Players      []dfs.Player      `json:"players"`
	SalaryScale  int64             `json:"salary_scale"`
	Lineup       LineupReport      `json:"lineup"`
	Optimization *optimizer.Result `json:"optimization"`
	Summary      Summary           `json:"summary"`
	Warnings     []string          `json:"warnings,omitempty"`
}

// NoFeasibleLineupMessage is reported when no subset fits under the cap.
const NoFeasibleLineupMessage = "no feasible lineup under the salary cap"

type Pipeline struct {
	optimizer *optimizer.Optimizer
	logger    *logrus.Entry
}

func New(opt *optimizer.Optimizer, logger *logrus.Logger) *Pipeline {
	if opt == nil {
		opt = optimizer.NewOptimizer(optimizer.DefaultMaxCells)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pipeline{
		optimizer: opt,
		logger:    logger.WithField("component", "pipeline"),
	}
}

// Run ingests, scores, filters and optimizes. Parameter, schema and data
// errors abort before any report is built; row-level problems end up in
// Report.Warnings.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Report, error) {
	if req.LineupSize <= 0 {
		return nil, fmt.Errorf("%w: lineup size must be positive, got %d", dfs.ErrInvalidParameter, req.LineupSize)
	}
	if _, err := ingest.ScaleCap(req.SalaryCap, ingest.ScaleUnits); err != nil {
		return nil, err
	}

	roster, err := ingest.LoadBytes(req.Matchups, req.Salaries)
	if err != nil {
		return nil, err
	}

	scored, err := scoring.Normalize(roster.Players)
	if err != nil {
		return nil, err
	}

	warnings := append([]string(nil), roster.Warnings...)

	teams := Teams(scored)
	selected, filtered, unknown := FilterByTeams(scored, req.TeamFilter)
	for _, team := range unknown {
		warnings = append(warnings, fmt.Sprintf("team %q is not in the matchup file", team))
	}

	capUnits, err := ingest.ScaleCap(req.SalaryCap, roster.SalaryScale)
	if err != nil {
		return nil, err
	}

	result, err := p.optimizer.Optimize(ctx, filtered, req.LineupSize, capUnits)
	if err != nil {
		return nil, err
	}

	report := &Report{
		CreatedAt:     time.Now().UTC(),
		LineupSize:    req.LineupSize,
		SalaryCap:     req.SalaryCap,
		Teams:         teams,
		SelectedTeams: selected,
		Players:       export.Rank(filtered),
		SalaryScale:   roster.SalaryScale,
		Optimization:  result,
		Summary:       Summarize(filtered),
		Warnings:      warnings,
	}

	if result.Feasible {
		report.Lineup = LineupReport{
			Feasible:    true,
			Players:     result.Lineup.Players,
			TotalScore:  result.Lineup.TotalScore,
			TotalSalary: ingest.SalaryAmount(result.Lineup.TotalSalary, roster.SalaryScale),
		}
	} else {
		report.Lineup = LineupReport{Message: NoFeasibleLineupMessage}
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s: no %d players fit within %s",
			NoFeasibleLineupMessage, req.LineupSize, ingest.FormatSalary(capUnits, roster.SalaryScale)))
	}

	p.logger.WithFields(logrus.Fields{
		"players":  len(scored),
		"selected": len(filtered),
		"feasible": result.Feasible,
		"warnings": len(report.Warnings),
	}).Debug("Pipeline run complete")

	return report, nil
}
