package provision

import (
	"time"

	"github.com/dropDatabas3/kcseed/internal/report"
)

// Nombres de los pasos (label "step" en logs y métricas).
const (
	StepRealm  = "realm"
	StepClient = "client"
	StepPurge  = "purge"
	StepSeed   = "seed"
)

// StepStatus es cómo terminó un paso.
type StepStatus string

const (
	StepCreated  StepStatus = "created"  // realm/client creado
	StepExists   StepStatus = "exists"   // ya estaba, no se tocó
	StepDone     StepStatus = "done"     // purge/seed recorrió todo
	StepDisabled StepStatus = "disabled" // purge apagado por config/flag
	StepFailed   StepStatus = "failed"
	StepAborted  StepStatus = "aborted" // sin token o contexto cancelado
)

// StepResult es el resultado de un paso.
type StepResult struct {
	Name   string
	Status StepStatus
	Err    error
}

// OK es false si el paso falló o se abortó.
func (s StepResult) OK() bool {
	return s.Status != StepFailed && s.Status != StepAborted && s.Status != ""
}

// Outcome clasifica un alta de usuario.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailed
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeFailed:
		return "FAILED"
	case OutcomeSkipped:
		return "SKIPPED"
	}
	return "UNKNOWN"
}

// UserResult es el resultado del alta de un usuario.
type UserResult struct {
	User    User
	ID      string // asignado por el servidor, si vino en Location
	Outcome Outcome
	Reason  string // detalle del error para FAILED/SKIPPED
}

// Status es el texto de la columna Status del CSV.
func (r UserResult) Status() string {
	if r.Outcome == OutcomeSuccess {
		return r.Outcome.String()
	}
	return r.Outcome.String() + ": " + r.Reason
}

// Row convierte el resultado en una fila del reporte.
func (r UserResult) Row() report.Row {
	return report.Row{
		Username:  r.User.Username,
		Email:     r.User.Email,
		FirstName: r.User.FirstName,
		LastName:  r.User.LastName,
		Password:  r.User.Password,
		Status:    r.Status(),
	}
}

// PurgeResult resume el borrado de usuarios existentes.
type PurgeResult struct {
	Step    StepResult
	Found   int
	Deleted int
	Errors  int
}

// SeedResult resume la creación de usuarios.
type SeedResult struct {
	Step       StepResult
	Batches    int
	Processed  int
	Created    int
	Failed     int
	Skipped    int
	ReportPath string
}

// RunResult agrega todos los pasos de una corrida.
type RunResult struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Server     string
	RealmName  string
	ClientID   string
	TotalUsers int
	BatchSize  int

	Realm  StepResult
	Client StepResult
	Purge  PurgeResult
	Seed   SeedResult
}

// Steps devuelve los pasos en orden de ejecución.
func (r RunResult) Steps() []StepResult {
	return []StepResult{r.Realm, r.Client, r.Purge.Step, r.Seed.Step}
}

// Failed es true si algún paso falló o se abortó, o si falló algún alta o
// borrado. Los SKIPPED no cuentan.
func (r RunResult) Failed() bool {
	for _, s := range r.Steps() {
		if !s.OK() {
			return true
		}
	}
	return r.Purge.Errors > 0 || r.Seed.Failed > 0
}

// Summary arma el resumen que se escribe en report.summary_file.
func (r RunResult) Summary() report.Summary {
	steps := make([]report.StepSummary, 0, 4)
	for _, s := range r.Steps() {
		ss := report.StepSummary{Step: s.Name, Outcome: string(s.Status)}
		if s.Err != nil {
			ss.Detail = s.Err.Error()
		}
		steps = append(steps, ss)
	}
	return report.Summary{
		RunID:        r.RunID,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		Server:       r.Server,
		Realm:        r.RealmName,
		Client:       r.ClientID,
		TotalUsers:   r.TotalUsers,
		BatchSize:    r.BatchSize,
		Steps:        steps,
		Processed:    r.Seed.Processed,
		Created:      r.Seed.Created,
		Failed:       r.Seed.Failed,
		Skipped:      r.Seed.Skipped,
		Deleted:      r.Purge.Deleted,
		DeleteFailed: r.Purge.Errors,
		ReportPath:   r.Seed.ReportPath,
		Success:      !r.Failed(),
	}
}
