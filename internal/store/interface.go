package store

import "time"

// ReadStore is the read-only view of a store.
type ReadStore[V any] interface {
	Get(key string) (V, bool, error)
	Len() int
	Keys() ([]string, error)
	Stats() Stats
}

// WriteStore extends ReadStore with mutations.
type WriteStore[V any] interface {
	ReadStore[V]
	Insert(key string, value V) error
	Delete(key string) error
	Sync() error
}

// CompactingStore is a WriteStore that can reclaim garbage.
type CompactingStore[V any] interface {
	WriteStore[V]
	GC() (GCReport, error)
	StartBackgroundGC(interval time.Duration, minGarbageRatio float64)
	StopBackgroundGC()
}

// StatsSource is anything that reports Stats.
type StatsSource interface {
	Stats() Stats
}

var _ CompactingStore[string] = (*Store[string])(nil)
