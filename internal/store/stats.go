package store

import (
	"sync/atomic"
)

// Stats holds statistics about a store.
type Stats struct {
	TotalReads   uint64
	TotalWrites  uint64
	TotalDeletes uint64
	CacheHits    uint64
	CacheMisses  uint64

	// Sizes of the current generation
	Keys         int
	LogBytes     uint64 // value log length
	LiveBytes    uint64 // bytes reachable through the index
	GarbageBytes uint64 // LogBytes - LiveBytes
	IndexBytes   uint64 // size of the last index snapshot

	// Compaction
	GCRuns         uint64
	ReclaimedBytes uint64 // log + index bytes freed by all GC runs
}

// GarbageRatio returns the share of the value log that is garbage.
func (s Stats) GarbageRatio() float64 {
	if s.LogBytes == 0 {
		return 0
	}
	return float64(s.GarbageBytes) / float64(s.LogBytes)
}

// StatsCollector tracks the counters shared by all handles of a store.
type StatsCollector struct {
	totalReads     uint64
	totalWrites    uint64
	totalDeletes   uint64
	gcRuns         uint64
	reclaimedBytes uint64
}

// NewStatsCollector creates a new stats collector
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{}
}

// IncrementReads atomically increments the read counter
func (s *StatsCollector) IncrementReads() {
	atomic.AddUint64(&s.totalReads, 1)
}

// IncrementWrites atomically increments the write counter
func (s *StatsCollector) IncrementWrites() {
	atomic.AddUint64(&s.totalWrites, 1)
}

// IncrementDeletes atomically increments the delete counter
func (s *StatsCollector) IncrementDeletes() {
	atomic.AddUint64(&s.totalDeletes, 1)
}

// RecordGC counts a finished GC run and the bytes it freed.
func (s *StatsCollector) RecordGC(reclaimed uint64) {
	atomic.AddUint64(&s.gcRuns, 1)
	atomic.AddUint64(&s.reclaimedBytes, reclaimed)
}

// Stats returns the counter part of Stats; sizes are filled in by the store.
func (s *StatsCollector) Stats() Stats {
	return Stats{
		TotalReads:     atomic.LoadUint64(&s.totalReads),
		TotalWrites:    atomic.LoadUint64(&s.totalWrites),
		TotalDeletes:   atomic.LoadUint64(&s.totalDeletes),
		GCRuns:         atomic.LoadUint64(&s.gcRuns),
		ReclaimedBytes: atomic.LoadUint64(&s.reclaimedBytes),
	}
}
