// Package metrics collects the counters of one pipeline run. A batch run has
// no scrape endpoint, so the registry is written out as a node-exporter
// textfile when the run ends.
package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is safe to use as a nil pointer; every method is then a no-op.
type Recorder struct {
	reg *prometheus.Registry

	entities    *prometheus.CounterVec
	records     *prometheus.CounterVec
	investments *prometheus.CounterVec
	rows        *prometheus.CounterVec
	stage       *prometheus.GaugeVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		entities: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ccet",
			Subsystem: "import",
			Name:      "entities_total",
			Help:      "Entity resolutions broken down by kind and outcome (cached/found/created).",
		}, []string{"kind", "outcome"}),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ccet",
			Subsystem: "import",
			Name:      "records_total",
			Help:      "Imported records broken down by result.",
		}, []string{"result"}),
		investments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ccet",
			Subsystem: "import",
			Name:      "investments_total",
			Help:      "Investment facts written, broken down by outcome (created/updated).",
		}, []string{"outcome"}),
		rows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ccet",
			Subsystem: "parse",
			Name:      "rows_total",
			Help:      "Sheet rows broken down by sheet and result (emitted or the skip reason).",
		}, []string{"sheet", "result"}),
		stage: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ccet",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of the last run of each pipeline stage.",
		}, []string{"stage"}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

func (r *Recorder) Entity(kind, outcome string) {
	if r == nil {
		return
	}
	r.entities.WithLabelValues(kind, outcome).Inc()
}

func (r *Recorder) Record(ok bool) {
	if r == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	r.records.WithLabelValues(result).Inc()
}

func (r *Recorder) Investment(outcome string) {
	if r == nil {
		return
	}
	r.investments.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Rows(sheet, result string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.rows.WithLabelValues(sheet, result).Add(float64(n))
}

func (r *Recorder) StageDuration(stage string, seconds float64) {
	if r == nil {
		return
	}
	r.stage.WithLabelValues(stage).Set(seconds)
}

// WriteTextfile writes the registry in the text exposition format. The file
// is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return errors.Wrapf(err, "write metrics textfile %s", path)
	}
	return nil
}
