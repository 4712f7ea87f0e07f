package store

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports Stats of a store as Prometheus metrics. Registering it
// and serving the registry is up to the caller.
type Collector struct {
	src StatsSource

	reads     *prometheus.Desc
	writes    *prometheus.Desc
	deletes   *prometheus.Desc
	cacheHits *prometheus.Desc
	cacheMiss *prometheus.Desc
	keys      *prometheus.Desc
	logBytes  *prometheus.Desc
	liveBytes *prometheus.Desc
	garbage   *prometheus.Desc
	index     *prometheus.Desc
	gcRuns    *prometheus.Desc
	reclaimed *prometheus.Desc
}

// NewCollector returns a collector reading from src. Metric names are
// prefixed with namespace.
func NewCollector(namespace string, src StatsSource) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}
	return &Collector{
		src:       src,
		reads:     desc("reads_total", "Get calls."),
		writes:    desc("writes_total", "Successful Insert calls."),
		deletes:   desc("deletes_total", "Successful Delete calls."),
		cacheHits: desc("cache_hits_total", "Get calls served from the value cache."),
		cacheMiss: desc("cache_misses_total", "Get calls that missed the value cache."),
		keys:      desc("keys", "Live keys."),
		logBytes:  desc("log_bytes", "Length of the value log."),
		liveBytes: desc("live_bytes", "Value log bytes reachable through the index."),
		garbage:   desc("garbage_bytes", "Value log bytes not reachable through the index."),
		index:     desc("index_bytes", "Size of the index snapshot."),
		gcRuns:    desc("gc_runs_total", "Completed GC runs."),
		reclaimed: desc("gc_reclaimed_bytes_total", "Bytes freed by GC."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs() {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	counter(c.reads, s.TotalReads)
	counter(c.writes, s.TotalWrites)
	counter(c.deletes, s.TotalDeletes)
	counter(c.cacheHits, s.CacheHits)
	counter(c.cacheMiss, s.CacheMisses)
	gauge(c.keys, float64(s.Keys))
	gauge(c.logBytes, float64(s.LogBytes))
	gauge(c.liveBytes, float64(s.LiveBytes))
	gauge(c.garbage, float64(s.GarbageBytes))
	gauge(c.index, float64(s.IndexBytes))
	counter(c.gcRuns, s.GCRuns)
	counter(c.reclaimed, s.ReclaimedBytes)
}

func (c *Collector) descs() []*prometheus.Desc {
	return []*prometheus.Desc{
		c.reads, c.writes, c.deletes, c.cacheHits, c.cacheMiss,
		c.keys, c.logBytes, c.liveBytes, c.garbage, c.index,
		c.gcRuns, c.reclaimed,
	}
}
