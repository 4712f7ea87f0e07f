package store

import (
	"bytes"
	"os"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Config configures a Store
type Config struct {
	SyncWrites        bool            // fsync both files after every Insert and Delete
	CacheBytes        int64           // value cache size, default 0 (disabled)
	GCInterval        time.Duration   // start background GC at this interval, default 0 (disabled)
	GCMinGarbageRatio float64         // garbage share of the log that triggers background GC, default 0.5
	Logger            *zerolog.Logger // default: logging disabled
}

// Store is a handle to an embedded key-value store. Handles created with
// Clone share the same files and state; the files are closed when the last
// handle is closed.
type Store[V any] struct {
	s      *shared[V]
	closed atomic.Bool
}

// shared is the state behind every handle of one store.
type shared[V any] struct {
	logPath   string
	indexPath string
	codec     Codec[V]
	cfg       Config
	log       zerolog.Logger

	// mu guards gen. Operations hold it shared; GC holds it exclusively
	// while it builds and swaps in a new generation.
	mu      poisonRWMutex
	gen     *generation
	lastGen uint64

	refs  atomic.Int64
	cache *ValueCache
	stats *StatsCollector

	// Background GC
	bgMu   sync.Mutex
	bgStop chan struct{}
	bgDone chan struct{}
}

// generation is one open pair of value log and index files.
type generation struct {
	id    uint64
	vlog  *ValueLog
	index *Index
	ifile *indexFile
}

// New opens or creates the value log and index files and starts with an
// empty index. The offset cursor starts at the current end of the log.
func New[V any](logPath, indexPath string, codec Codec[V], cfg Config) (*Store[V], error) {
	gen, err := createGeneration(logPath, indexPath, os.O_RDWR|os.O_CREATE)
	if err != nil {
		return nil, err
	}
	st, err := newStore(logPath, indexPath, codec, cfg, gen)
	if err != nil {
		return nil, err
	}
	st.s.log.Debug().
		Str("log", logPath).
		Str("index", indexPath).
		Uint64("log_bytes", gen.vlog.Size()).
		Msg("created store")
	return st, nil
}

// Load opens existing value log and index files and rebuilds the index from
// the snapshot. A GC swap interrupted by a crash is finished first. The
// value log is not checked against the index.
func Load[V any](logPath, indexPath string, codec Codec[V], cfg Config) (*Store[V], error) {
	logger := cfg.logger()
	if _, err := recoverSwap(indexPath, logger); err != nil {
		return nil, err
	}
	gen, err := loadGeneration(logPath, indexPath)
	if err != nil {
		return nil, err
	}
	st, err := newStore(logPath, indexPath, codec, cfg, gen)
	if err != nil {
		return nil, err
	}
	st.s.log.Debug().
		Str("log", logPath).
		Str("index", indexPath).
		Int("keys", gen.index.Len()).
		Uint64("log_bytes", gen.vlog.Size()).
		Msg("loaded store")
	return st, nil
}

func newStore[V any](logPath, indexPath string, codec Codec[V], cfg Config, gen *generation) (*Store[V], error) {
	if cfg.GCMinGarbageRatio == 0 {
		cfg.GCMinGarbageRatio = 0.5
	}
	s := &shared[V]{
		logPath:   logPath,
		indexPath: indexPath,
		codec:     codec,
		cfg:       cfg,
		log:       cfg.logger(),
		gen:       gen,
		stats:     NewStatsCollector(),
	}
	if cfg.CacheBytes > 0 {
		cache, err := NewValueCache(cfg.CacheBytes)
		if err != nil {
			gen.close()
			return nil, err
		}
		s.cache = cache
	}
	s.refs.Store(1)
	if cfg.GCInterval > 0 {
		s.startBackgroundGC(cfg.GCInterval, cfg.GCMinGarbageRatio)
	}
	return &Store[V]{s: s}, nil
}

func (c Config) logger() zerolog.Logger {
	if c.Logger == nil {
		return zerolog.Nop()
	}
	return c.Logger.With().Str("component", "skv").Logger()
}

func createGeneration(logPath, indexPath string, flag int) (*generation, error) {
	vlog, err := openValueLog(logPath, flag)
	if err != nil {
		return nil, err
	}
	ifile, err := openIndexFile(indexPath, flag)
	if err != nil {
		vlog.Close()
		return nil, err
	}
	return &generation{vlog: vlog, index: NewIndex(), ifile: ifile}, nil
}

func loadGeneration(logPath, indexPath string) (*generation, error) {
	gen, err := createGeneration(logPath, indexPath, os.O_RDWR)
	if err != nil {
		return nil, err
	}
	data, err := gen.ifile.readAll()
	if err != nil {
		gen.close()
		return nil, err
	}
	idx, err := LoadIndex(data)
	if err != nil {
		gen.close()
		return nil, err
	}
	gen.index = idx
	return gen, nil
}

func (g *generation) sync() error {
	if err := g.vlog.Sync(); err != nil {
		return err
	}
	return g.ifile.sync()
}

func (g *generation) close() error {
	errLog := g.vlog.Close()
	errIndex := g.ifile.close()
	if errLog != nil {
		return errLog
	}
	return errIndex
}

// withGen runs fn against the current generation with the generation lock
// held shared.
func (st *Store[V]) withGen(fn func(g *generation) error) error {
	if st.closed.Load() {
		return ErrClosed
	}
	return st.s.mu.read(func() error {
		if st.s.gen == nil {
			return ErrClosed
		}
		return fn(st.s.gen)
	})
}

// Insert stores value under key. The value is appended to the log and the
// full index snapshot is rewritten. It is not durable until Sync unless
// Config.SyncWrites is set.
func (st *Store[V]) Insert(key string, value V) error {
	// The snapshot format only holds UTF-8 keys.
	if !utf8.ValidString(key) {
		return serializationErr(nil, "key %q is not valid UTF-8", key)
	}
	data, err := st.s.codec.Encode(value)
	if err != nil {
		return serializationErr(err, "encode value for key %q", key)
	}
	return st.withGen(func(g *generation) error {
		err := g.vlog.withLock(func() error {
			return g.index.mu.write(func() error {
				n := uint64(len(data))
				offset := g.vlog.Reserve(n)
				if err := g.vlog.writeAt(offset, data); err != nil {
					return err
				}
				g.index.put(key, Location{Offset: offset, Length: n})
				return g.ifile.rewrite(encodeIndex(g.index.entries))
			})
		})
		if err != nil {
			return err
		}
		st.s.stats.IncrementWrites()
		if st.s.cache != nil {
			st.s.cache.Invalidate(key)
		}
		if st.s.cfg.SyncWrites {
			return g.sync()
		}
		return nil
	})
}

// Get returns the value stored under key. A missing key is reported with
// ok == false and a nil error.
func (st *Store[V]) Get(key string) (value V, ok bool, err error) {
	var data []byte
	err = st.withGen(func(g *generation) error {
		loc, found, err := g.index.Lookup(key)
		if err != nil || !found {
			return err
		}
		ok = true
		if st.s.cache != nil {
			if cached, hit := st.s.cache.Get(key, g.id, loc); hit {
				data = bytes.Clone(cached)
				return nil
			}
		}
		err = g.vlog.withLock(func() error {
			var err error
			data, err = g.vlog.readAt(loc.Offset, loc.Length)
			return err
		})
		if err != nil {
			return err
		}
		if st.s.cache != nil {
			st.s.cache.Put(key, g.id, loc, bytes.Clone(data))
		}
		return nil
	})
	st.s.stats.IncrementReads()
	if err != nil || !ok {
		return value, false, err
	}
	v, err := st.s.codec.Decode(data)
	if err != nil {
		return value, false, serializationErr(err, "decode value for key %q", key)
	}
	return v, true, nil
}

// Delete removes key from the index and rewrites the snapshot. The value
// bytes stay in the log until the next GC.
func (st *Store[V]) Delete(key string) error {
	return st.withGen(func(g *generation) error {
		err := g.index.mu.write(func() error {
			if !g.index.remove(key) {
				return newKindError(ErrKeyNotFound, nil, "delete %q", key)
			}
			return g.ifile.rewrite(encodeIndex(g.index.entries))
		})
		if err != nil {
			return err
		}
		st.s.stats.IncrementDeletes()
		if st.s.cache != nil {
			st.s.cache.Invalidate(key)
		}
		if st.s.cfg.SyncWrites {
			return g.sync()
		}
		return nil
	})
}

// Sync forces the value log and the index file to stable storage.
func (st *Store[V]) Sync() error {
	return st.withGen(func(g *generation) error {
		return g.sync()
	})
}

// Len returns the number of live keys.
func (st *Store[V]) Len() int {
	var n int
	_ = st.withGen(func(g *generation) error {
		n = g.index.Len()
		return nil
	})
	return n
}

// Keys returns all live keys in lexical order.
func (st *Store[V]) Keys() ([]string, error) {
	var keys []string
	err := st.withGen(func(g *generation) error {
		var err error
		keys, err = g.index.Keys()
		return err
	})
	return keys, err
}

// Stats returns current store statistics
func (st *Store[V]) Stats() Stats {
	return st.s.snapshotStats()
}

// Paths returns the value log and index file paths.
func (st *Store[V]) Paths() (logPath, indexPath string) {
	return st.s.logPath, st.s.indexPath
}

// Clone returns another handle to the same store. Each handle must be
// closed; the files stay open until the last one is.
func (st *Store[V]) Clone() *Store[V] {
	c := &Store[V]{s: st.s}
	if st.closed.Load() {
		c.closed.Store(true)
		return c
	}
	st.s.refs.Add(1)
	return c
}

// Close releases this handle. Closing the last handle stops background GC
// and closes both files without syncing them. Close is idempotent.
func (st *Store[V]) Close() error {
	if st.closed.Swap(true) {
		return nil
	}
	if st.s.refs.Add(-1) > 0 {
		return nil
	}
	return st.s.shutdown()
}

func (s *shared[V]) shutdown() error {
	s.stopBackgroundGC()
	var err error
	s.mu.writeIgnoringPoison(func() {
		if s.gen != nil {
			err = s.gen.close()
			s.gen = nil
		}
	})
	if s.cache != nil {
		s.cache.Close()
	}
	s.log.Debug().Str("log", s.logPath).Msg("closed store")
	return err
}

func (s *shared[V]) snapshotStats() Stats {
	stats := s.stats.Stats()
	if s.cache != nil {
		stats.CacheHits, stats.CacheMisses = s.cache.Stats()
	}
	_ = s.mu.read(func() error {
		if s.gen == nil {
			return nil
		}
		stats.Keys = s.gen.index.Len()
		stats.LogBytes = s.gen.vlog.Size()
		stats.LiveBytes = s.gen.index.LiveBytes()
		if stats.LogBytes > stats.LiveBytes {
			stats.GarbageBytes = stats.LogBytes - stats.LiveBytes
		}
		stats.IndexBytes = uint64(s.gen.ifile.size.Load())
		return nil
	})
	return stats
}
