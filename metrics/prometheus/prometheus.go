// Package prometheus exports write metrics with the Prometheus client.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/rowsink"
	"github.com/hupe1980/rowsink/dataset"
)

// Collector implements dataset.Observer and rowsink.MetricsCollector.
type Collector struct {
	openFiles    prometheus.Gauge
	files        prometheus.Counter
	fileRows     prometheus.Histogram
	rows         prometheus.Counter
	groupLatency prometheus.Histogram
	backpressure *prometheus.CounterVec
	writes       *prometheus.CounterVec
	writeLatency prometheus.Histogram
	commits      *prometheus.CounterVec
}

var (
	_ dataset.Observer         = (*Collector)(nil)
	_ rowsink.MetricsCollector = (*Collector)(nil)
)

// New creates a Collector and registers it with reg, or with the default
// registerer if reg is nil.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		openFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rowsink_open_files",
			Help: "Files currently open",
		}),
		files: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rowsink_files_written_total",
			Help: "Total files finished",
		}),
		fileRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rowsink_file_rows",
			Help:    "Rows per finished file",
			Buckets: prometheus.ExponentialBuckets(1000, 4, 10),
		}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rowsink_rows_written_total",
			Help: "Total rows handed to file writers",
		}),
		groupLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rowsink_group_write_seconds",
			Help:    "Latency of row group writes",
			Buckets: prometheus.DefBuckets,
		}),
		backpressure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rowsink_backpressure_events_total",
			Help: "Times a producer had to wait for a throttle",
		}, []string{"throttle"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rowsink_writes_total",
			Help: "Total Write calls",
		}, []string{"status"}),
		writeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rowsink_write_seconds",
			Help:    "Duration of Write calls",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rowsink_commits_total",
			Help: "Total manifest commits",
		}, []string{"status"}),
	}

	reg.MustRegister(
		c.openFiles,
		c.files,
		c.fileRows,
		c.rows,
		c.groupLatency,
		c.backpressure,
		c.writes,
		c.writeLatency,
		c.commits,
	)
	return c
}

func (c *Collector) FileOpened(string) {
	c.openFiles.Inc()
}

func (c *Collector) FileClosed(_ string, rows int64) {
	c.openFiles.Dec()
	c.files.Inc()
	c.fileRows.Observe(float64(rows))
}

func (c *Collector) GroupWritten(_ string, rows int64, d time.Duration) {
	c.rows.Add(float64(rows))
	c.groupLatency.Observe(d.Seconds())
}

func (c *Collector) Backpressure(kind dataset.Backpressure) {
	c.backpressure.WithLabelValues(kind.String()).Inc()
}

func (c *Collector) RecordWrite(_ int, _ int64, d time.Duration, err error) {
	c.writes.WithLabelValues(status(err)).Inc()
	c.writeLatency.Observe(d.Seconds())
}

func (c *Collector) RecordCommit(_ time.Duration, err error) {
	c.commits.WithLabelValues(status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
