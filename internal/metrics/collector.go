package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// BufferStats gives the collector access to the circular buffer's live
// sequence range (internal/buffer.CircularBuffer.FirstSequence/NextSequence).
type BufferStats interface {
	FirstSequence() uint64
	NextSequence() uint64
}

// SourceStats gives the collector access to per-source connection counts
// (internal/agent.StatusTracker.ActiveCount/TotalCount).
type SourceStats interface {
	ActiveCount() int
	TotalCount() int
}

// Collector implements prometheus.Collector to read live agent/buffer/DB
// state at scrape time, grounded on the teacher's Collector (same
// describe-then-collect shape, db_pool descriptors kept verbatim since
// internal/archive still pools through pgxpool.Pool), generalized from
// ingest/SSE counters to buffer sequence range and source connection counts.
type Collector struct {
	pool   *pgxpool.Pool
	buffer BufferStats
	status SourceStats

	bufferFirstSeq  *prometheus.Desc
	bufferNextSeq   *prometheus.Desc
	bufferDepth     *prometheus.Desc
	sourcesActive   *prometheus.Desc
	sourcesTotal    *prometheus.Desc
	dbTotalConns    *prometheus.Desc
	dbAcquiredConns *prometheus.Desc
	dbIdleConns     *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// pool, buffer, and status may each be nil (their metrics report 0).
func NewCollector(pool *pgxpool.Pool, buffer BufferStats, status SourceStats) *Collector {
	return &Collector{
		pool:   pool,
		buffer: buffer,
		status: status,
		bufferFirstSeq: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "buffer", "first_sequence"),
			"Oldest sequence number still held in the circular buffer.",
			nil, nil,
		),
		bufferNextSeq: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "buffer", "next_sequence"),
			"Sequence number that will be assigned to the next observation.",
			nil, nil,
		),
		bufferDepth: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "buffer", "depth"),
			"Observations currently held in the circular buffer (next - first).",
			nil, nil,
		),
		sourcesActive: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sources", "active"),
			"Sources currently reporting StatusConnected.",
			nil, nil,
		),
		sourcesTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sources", "total"),
			"Sources ever reported to the agent's status tracker.",
			nil, nil,
		),
		dbTotalConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "total_conns"),
			"Total database pool connections.",
			nil, nil,
		),
		dbAcquiredConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "acquired_conns"),
			"Database pool connections currently in use.",
			nil, nil,
		),
		dbIdleConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "idle_conns"),
			"Database pool idle connections.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.bufferFirstSeq
	ch <- c.bufferNextSeq
	ch <- c.bufferDepth
	ch <- c.sourcesActive
	ch <- c.sourcesTotal
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
	ch <- c.dbIdleConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.buffer != nil {
		first, next := c.buffer.FirstSequence(), c.buffer.NextSequence()
		ch <- prometheus.MustNewConstMetric(c.bufferFirstSeq, prometheus.GaugeValue, float64(first))
		ch <- prometheus.MustNewConstMetric(c.bufferNextSeq, prometheus.GaugeValue, float64(next))
		ch <- prometheus.MustNewConstMetric(c.bufferDepth, prometheus.GaugeValue, float64(next-first))
	} else {
		ch <- prometheus.MustNewConstMetric(c.bufferFirstSeq, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.bufferNextSeq, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.bufferDepth, prometheus.GaugeValue, 0)
	}

	if c.status != nil {
		ch <- prometheus.MustNewConstMetric(c.sourcesActive, prometheus.GaugeValue, float64(c.status.ActiveCount()))
		ch <- prometheus.MustNewConstMetric(c.sourcesTotal, prometheus.GaugeValue, float64(c.status.TotalCount()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.sourcesActive, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.sourcesTotal, prometheus.GaugeValue, 0)
	}

	if c.pool != nil {
		stat := c.pool.Stat()
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, float64(stat.TotalConns()))
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, float64(stat.AcquiredConns()))
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, float64(stat.IdleConns()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, 0)
	}
}
