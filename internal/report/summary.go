package report

import (
	"time"

	"github.com/dropDatabas3/kcseed/internal/util/atomicwrite"
)

// StepSummary es el resultado de un paso del provisioning.
type StepSummary struct {
	Step    string `json:"step"`
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}

// Summary es el resumen JSON de una corrida (report.summary_file).
type Summary struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Server     string        `json:"server"`
	Realm      string        `json:"realm"`
	Client     string        `json:"client"`
	TotalUsers int           `json:"total_users"`
	BatchSize  int           `json:"batch_size"`
	Steps      []StepSummary `json:"steps"`

	Processed int `json:"processed"`
	Created   int `json:"created"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`

	Deleted      int    `json:"deleted"`
	DeleteFailed int    `json:"delete_failed"`
	ReportPath   string `json:"report_path,omitempty"`
	Success      bool   `json:"success"`
}

// WriteSummary escribe el resumen de forma atómica.
func WriteSummary(path string, s Summary) error {
	return atomicwrite.WriteJSON(path, s, 0o644)
}
