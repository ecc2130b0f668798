package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jstittsworth/hr-optimizer/internal/pipeline"
)

// Run is one completed optimization request. The full report is stored as
// JSON so a past run can be shown or exported without recomputing it.
type Run struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SessionID   string         `gorm:"not null;index" json:"session_id"`
	Status      string         `gorm:"not null" json:"status"`
	LineupSize  int            `gorm:"not null" json:"lineup_size"`
	SalaryCap   float64        `gorm:"not null" json:"salary_cap"`
	Feasible    bool           `gorm:"default:false" json:"feasible"`
	TotalScore  int            `json:"total_score"`
	TotalSalary float64        `json:"total_salary"`
	PlayerCount int            `json:"player_count"`
	Report      datatypes.JSON `json:"-"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Run) TableName() string {
	return "runs"
}

func (r *Run) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		return fmt.Errorf("run id is required")
	}
	return nil
}

// NewRun flattens a report into a row.
func NewRun(report *pipeline.Report) (*Run, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}

	status := string(pipeline.StatusCompleted)
	if !report.Lineup.Feasible {
		status = string(pipeline.StatusInfeasible)
	}

	return &Run{
		ID:          report.RunID,
		SessionID:   report.SessionID,
		Status:      status,
		LineupSize:  report.LineupSize,
		SalaryCap:   report.SalaryCap,
		Feasible:    report.Lineup.Feasible,
		TotalScore:  report.Lineup.TotalScore,
		TotalSalary: report.Lineup.TotalSalary,
		PlayerCount: len(report.Players),
		Report:      datatypes.JSON(data),
		CreatedAt:   report.CreatedAt,
	}, nil
}

// DecodeReport restores the stored report.
func (r *Run) DecodeReport() (*pipeline.Report, error) {
	if len(r.Report) == 0 {
		return nil, fmt.Errorf("run %s has no stored report", r.ID)
	}
	var report pipeline.Report
	if err := json.Unmarshal(r.Report, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}
