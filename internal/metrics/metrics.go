package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Resultados usados como label "result".
const (
	ResultCreated = "created"
	ResultExists  = "exists"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
	ResultDeleted = "deleted"
	ResultAborted = "aborted"
)

// Recorder es lo que consumen el admin client y los pasos del seeding.
type Recorder interface {
	// ObserveRequest registra una llamada al admin API. code es el status HTTP
	// o "error" si no hubo respuesta.
	ObserveRequest(op, code string, d time.Duration)
	User(result string)
	Delete(result string)
	Step(step, result string)
}

// Nop descarta todo. Default cuando no se pide --metrics-file.
type Nop struct{}

func (Nop) ObserveRequest(string, string, time.Duration) {}
func (Nop) User(string)                                  {}
func (Nop) Delete(string)                                {}
func (Nop) Step(string, string)                          {}

// Prom guarda las métricas de una corrida en un registry propio (no el global),
// así cada ejecución y cada test arranca en cero.
type Prom struct {
	reg *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	usersTotal      *prometheus.CounterVec
	deletesTotal    *prometheus.CounterVec
	stepsTotal      *prometheus.CounterVec
	lastRun         prometheus.Gauge
}

// New crea y registra los collectors.
func New() *Prom {
	p := &Prom{
		reg: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kcseed",
			Name:      "admin_requests_total",
			Help:      "Llamadas al admin API por operación y status",
		}, []string{"op", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kcseed",
			Name:      "admin_request_duration_seconds",
			Help:      "Latencia de las llamadas al admin API",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		usersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kcseed",
			Name:      "users_total",
			Help:      "Usuarios procesados por el seeder según resultado",
		}, []string{"result"}), // created|failed|skipped
		deletesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kcseed",
			Name:      "user_deletes_total",
			Help:      "Borrados de usuarios existentes según resultado",
		}, []string{"result"}), // deleted|failed
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kcseed",
			Name:      "steps_total",
			Help:      "Pasos del provisioning según resultado",
		}, []string{"step", "result"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kcseed",
			Name:      "last_run_timestamp_seconds",
			Help:      "Momento en que terminó la última corrida",
		}),
	}
	p.reg.MustRegister(p.requestsTotal, p.requestDuration, p.usersTotal, p.deletesTotal, p.stepsTotal, p.lastRun)
	return p
}

func (p *Prom) ObserveRequest(op, code string, d time.Duration) {
	p.requestsTotal.WithLabelValues(op, code).Inc()
	p.requestDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (p *Prom) User(result string)       { p.usersTotal.WithLabelValues(result).Inc() }
func (p *Prom) Delete(result string)     { p.deletesTotal.WithLabelValues(result).Inc() }
func (p *Prom) Step(step, result string) { p.stepsTotal.WithLabelValues(step, result).Inc() }

// Registry expone el registry (tests, o un futuro /metrics).
func (p *Prom) Registry() *prometheus.Registry { return p.reg }

// WriteTextfile marca el fin de la corrida y vuelca todo en formato de
// exposición de Prometheus. WriteToTextfile escribe a un temporal y renombra.
func (p *Prom) WriteTextfile(path string, finished time.Time) error {
	p.lastRun.Set(float64(finished.Unix()))
	return prometheus.WriteToTextfile(path, p.reg)
}

// Code normaliza un status HTTP para el label "code".
func Code(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status)
}
