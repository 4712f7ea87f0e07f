// Package skv is an embedded key-value store backed by an append-only value
// log and an index snapshot file.
//
// A Store is safe for concurrent use. Clone hands out additional handles to
// the same files; each handle must be closed. Values are serialized by a
// Codec, and GC reclaims the space left behind by overwrites and deletes.
//
//	s, err := skv.New[string]("kv_store.db", "kv_index.db", skv.StringCodec{}, skv.Config{})
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//	err = s.Insert("key1", "one")
package skv

import (
	"github.com/klauspost/compress/zstd"

	"github.com/freeeve/skv/internal/store"
)

type (
	// Store is a handle to an open store.
	Store[V any] = store.Store[V]
	// Config configures a Store.
	Config = store.Config
	// Stats holds counters and sizes of a store.
	Stats = store.Stats
	// GCReport describes one GC run.
	GCReport = store.GCReport
	// Collector exports Stats as Prometheus metrics.
	Collector = store.Collector

	// Codec turns values into bytes and back.
	Codec[V any]       = store.Codec[V]
	StringCodec        = store.StringCodec
	BytesCodec         = store.BytesCodec
	JSONCodec[V any]   = store.JSONCodec[V]
	GobCodec[V any]    = store.GobCodec[V]
	ZstdCodec[V any]   = store.ZstdCodec[V]
	SnappyCodec[V any] = store.SnappyCodec[V]
)

var (
	ErrIO            = store.ErrIO
	ErrLockPoisoned  = store.ErrLockPoisoned
	ErrCorruptIndex  = store.ErrCorruptIndex
	ErrTruncatedRead = store.ErrTruncatedRead
	ErrSerialization = store.ErrSerialization
	ErrKeyNotFound   = store.ErrKeyNotFound
	ErrClosed        = store.ErrClosed
)

// New opens or creates the files at logPath and indexPath and starts with an
// empty index. Existing log bytes are kept; new values are appended after
// them.
func New[V any](logPath, indexPath string, codec Codec[V], cfg Config) (*Store[V], error) {
	return store.New[V](logPath, indexPath, codec, cfg)
}

// Load opens existing files and rebuilds the index from the snapshot.
func Load[V any](logPath, indexPath string, codec Codec[V], cfg Config) (*Store[V], error) {
	return store.Load[V](logPath, indexPath, codec, cfg)
}

// NewZstdCodec wraps inner with zstd compression at the given level.
func NewZstdCodec[V any](inner Codec[V], level zstd.EncoderLevel) (*ZstdCodec[V], error) {
	return store.NewZstdCodec[V](inner, level)
}

// NewCollector returns a Prometheus collector for the stats of s.
func NewCollector[V any](namespace string, s *Store[V]) *Collector {
	return store.NewCollector(namespace, s)
}
