// Package metrics exports the outcome of a catalog load to Prometheus.
//
// The loader is a batch job, so nothing is scraped: the gauges are filled
// from the run report and pushed to a Pushgateway when one is configured.
//
// Import Path: catalogo.cali.gov.co/etl/internal/metrics
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"catalogo.cali.gov.co/etl/internal/pipeline"
)

const namespace = "catalogo_etl"

// Metrics holds the gauges describing the last run.
type Metrics struct {
	registry *prometheus.Registry

	TableRows     *prometheus.GaugeVec
	Diagnostics   *prometheus.GaugeVec
	StageDuration *prometheus.GaugeVec
	StageFailed   *prometheus.GaugeVec
	RunDuration   prometheus.Gauge
	LastRun       prometheus.Gauge
	LastSuccess   prometheus.Gauge
}

// New creates the gauges on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		TableRows: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "table_rows",
			Help:      "Rows in each catalog table after the load",
		}, []string{"table"}),
		Diagnostics: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "diagnostics",
			Help:      "Rows or links dropped, defaulted or failed, by stage and code",
		}, []string{"stage", "code"}),
		StageDuration: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each stage of the last run",
		}, []string{"stage"}),
		StageFailed: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_failed",
			Help:      "1 when the stage failed in the last run",
		}, []string{"stage"}),
		RunDuration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		LastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last run without a fatal error finished",
		}),
	}
}

// Registry returns the registry holding the gauges.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Record fills the gauges from a report.
func (m *Metrics) Record(r *pipeline.Report) {
	for _, c := range r.Counts {
		m.TableRows.WithLabelValues(c.Table).Set(float64(c.Rows))
	}

	byKey := make(map[[2]string]int)
	for _, d := range r.Diagnostics {
		byKey[[2]string{d.Stage, d.Code}]++
	}
	for k, n := range byKey {
		m.Diagnostics.WithLabelValues(k[0], k[1]).Set(float64(n))
	}

	for _, s := range r.Stages {
		m.StageDuration.WithLabelValues(s.Name).Set(s.Duration.Seconds())
		failed := 0.0
		if s.Status == pipeline.StatusFailed {
			failed = 1
		}
		m.StageFailed.WithLabelValues(s.Name).Set(failed)
	}

	m.RunDuration.Set(r.Duration().Seconds())
	m.LastRun.Set(float64(r.FinishedAt.Unix()))
	if r.Fatal == nil {
		m.LastSuccess.Set(float64(r.FinishedAt.Unix()))
	}
}

// Push sends the gauges to the Pushgateway at url, replacing the previous
// push of the same job and profile.
func (m *Metrics) Push(ctx context.Context, url, job, profile string) error {
	err := push.New(url, job).
		Gatherer(m.registry).
		Grouping("profile", profile).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
