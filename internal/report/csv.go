package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Header del CSV, en este orden.
var Header = []string{"Username", "Email", "First Name", "Last Name", "Password", "Status"}

const fileTimeLayout = "20060102_150405"

// Row es una fila del reporte: un intento de alta.
type Row struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
	Status    string // SUCCESS | FAILED: <detalle> | SKIPPED: <detalle>
}

func (r Row) record() []string {
	return []string{r.Username, r.Email, r.FirstName, r.LastName, r.Password, r.Status}
}

// FileName arma seeded_users_YYYYMMDD_HHMMSS.csv para el instante t (hora local).
func FileName(t time.Time) string {
	return "seeded_users_" + t.Format(fileTimeLayout) + ".csv"
}

// Writer es el CSV abierto de una corrida. No es seguro para uso concurrente;
// el seeder es su único dueño.
type Writer struct {
	f    *os.File
	w    *csv.Writer
	path string
	rows int
}

// Create abre dir/FileName(now) y escribe el header.
func Create(dir string, now time.Time) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: mkdir %s: %w", dir, err)
	}
	p := filepath.Join(dir, FileName(now))
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("report: create %s: %w", p, err)
	}
	w := &Writer{f: f, w: csv.NewWriter(f), path: p}
	if err := w.writeRecord(Header); err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

// Write agrega una fila y la baja a disco antes de volver.
func (w *Writer) Write(r Row) error {
	if err := w.writeRecord(r.record()); err != nil {
		return err
	}
	w.rows++
	return nil
}

func (w *Writer) writeRecord(rec []string) error {
	if err := w.w.Write(rec); err != nil {
		return fmt.Errorf("report: write %s: %w", w.path, err)
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return fmt.Errorf("report: flush %s: %w", w.path, err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("report: fsync %s: %w", w.path, err)
	}
	return nil
}

// Path del archivo generado.
func (w *Writer) Path() string { return w.path }

// Rows cuenta filas de datos (sin el header).
func (w *Writer) Rows() int { return w.rows }

// Close cierra el archivo. Idempotente.
func (w *Writer) Close() error {
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
