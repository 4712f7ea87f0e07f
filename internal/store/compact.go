package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

const (
	gcTempSuffix     = ".gc"
	swapMarkerSuffix = ".gc-swap"
)

// GCReport describes one compaction run.
type GCReport struct {
	Keys        int
	LogBefore   uint64
	LogAfter    uint64
	IndexBefore uint64
	IndexAfter  uint64
	Duration    time.Duration
}

// LogSaved returns how many bytes the value log shrank by.
func (r GCReport) LogSaved() int64 {
	return int64(r.LogBefore) - int64(r.LogAfter)
}

// IndexSaved returns how many bytes the index file shrank by. It can be
// negative when the old index file was empty.
func (r GCReport) IndexSaved() int64 {
	return int64(r.IndexBefore) - int64(r.IndexAfter)
}

// Reclaimed returns the total bytes freed on disk.
func (r GCReport) Reclaimed() uint64 {
	var n int64
	if s := r.LogSaved(); s > 0 {
		n += s
	}
	if s := r.IndexSaved(); s > 0 {
		n += s
	}
	return uint64(n)
}

// swapMarker lists the renames that turn a compacted temp pair into the live
// pair. It exists on disk only while a swap is in progress.
type swapMarker struct {
	Pairs []swapPair `json:"pairs"`
}

type swapPair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// GC rewrites the live entries into fresh files and swaps them in for the
// originals. Every handle of the store sees the compacted files afterwards.
//
// Errors before the swap leave the original files untouched. Once the swap
// has started, a marker file next to the index guarantees that Load
// finishes it.
func (st *Store[V]) GC() (GCReport, error) {
	if st.closed.Load() {
		return GCReport{}, ErrClosed
	}
	return st.s.gc()
}

func (s *shared[V]) gc() (GCReport, error) {
	start := time.Now()
	var report GCReport
	err := s.mu.write(func() error {
		if s.gen == nil {
			return ErrClosed
		}
		old := s.gen
		tmpLog := s.logPath + gcTempSuffix
		tmpIndex := s.indexPath + gcTempSuffix

		fresh, err := s.copyLive(old, tmpLog, tmpIndex)
		if err != nil {
			removeQuietly(tmpLog, tmpIndex)
			return err
		}
		report.Keys = fresh.index.Len()
		report.LogBefore = old.vlog.Size()
		report.LogAfter = fresh.vlog.Size()
		report.IndexBefore = uint64(old.ifile.size.Load())
		report.IndexAfter = uint64(fresh.ifile.size.Load())

		// Renaming over open files is not portable; close both pairs first.
		fresh.close()
		s.gen = nil
		if err := old.close(); err != nil {
			s.log.Warn().Err(err).Msg("close pre-gc files")
		}

		swapErr := swapFiles(s.indexPath+swapMarkerSuffix, []swapPair{
			{From: tmpLog, To: s.logPath},
			{From: tmpIndex, To: s.indexPath},
		})
		if swapErr != nil {
			s.log.Error().Err(swapErr).Msg("gc swap failed, finishing from marker")
			found, err := recoverSwap(s.indexPath, s.log)
			if err != nil {
				return err
			}
			if !found {
				// The marker never made it to disk, so the originals were
				// not touched.
				removeQuietly(tmpLog, tmpIndex)
			}
		}
		gen, err := loadGeneration(s.logPath, s.indexPath)
		if err != nil {
			return err
		}
		s.lastGen++
		gen.id = s.lastGen
		s.gen = gen
		return swapErr
	})
	if err != nil {
		return GCReport{}, err
	}
	report.Duration = time.Since(start)
	if s.cache != nil {
		// Entries of the old generation can never match again; drop them
		// to free the memory.
		s.cache.Clear()
	}
	s.stats.RecordGC(report.Reclaimed())
	s.log.Info().
		Int("keys", report.Keys).
		Str("log_before", humanize.Bytes(report.LogBefore)).
		Str("log_after", humanize.Bytes(report.LogAfter)).
		Str("log_saved", signedBytes(report.LogSaved())).
		Str("index_saved", signedBytes(report.IndexSaved())).
		Dur("dur", report.Duration).
		Msg("gc complete")
	return report, nil
}

// copyLive builds a compacted generation at the temp paths. Values are
// decoded and re-encoded so a corrupt entry fails the run instead of being
// carried over.
func (s *shared[V]) copyLive(old *generation, logPath, indexPath string) (*generation, error) {
	removeQuietly(logPath, indexPath)
	fresh, err := createGeneration(logPath, indexPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return nil, err
	}
	entries, err := old.index.Entries()
	if err != nil {
		fresh.close()
		return nil, err
	}
	err = fresh.vlog.withLock(func() error {
		for _, e := range entries {
			raw, err := old.vlog.ReadAt(e.Offset, e.Length)
			if err != nil {
				return err
			}
			v, err := s.codec.Decode(raw)
			if err != nil {
				return serializationErr(err, "decode value for key %q", e.Key)
			}
			data, err := s.codec.Encode(v)
			if err != nil {
				return serializationErr(err, "encode value for key %q", e.Key)
			}
			n := uint64(len(data))
			offset := fresh.vlog.Reserve(n)
			if err := fresh.vlog.writeAt(offset, data); err != nil {
				return err
			}
			fresh.index.put(e.Key, Location{Offset: offset, Length: n})
		}
		return nil
	})
	if err == nil {
		// One snapshot for the whole copy instead of one per entry.
		err = fresh.ifile.rewrite(encodeIndex(fresh.index.entries))
	}
	if err == nil {
		err = fresh.sync()
	}
	if err != nil {
		fresh.close()
		return nil, err
	}
	return fresh, nil
}

// swapFiles records the renames in a marker, performs them and removes the
// marker.
func swapFiles(markerPath string, pairs []swapPair) error {
	if err := writeMarker(markerPath, swapMarker{Pairs: pairs}); err != nil {
		return err
	}
	for _, p := range pairs {
		if err := os.Rename(p.From, p.To); err != nil {
			return ioErr(err, "rename %s to %s", p.From, p.To)
		}
	}
	syncDirs(pairs)
	if err := os.Remove(markerPath); err != nil {
		return ioErr(err, "remove swap marker %s", markerPath)
	}
	syncDir(filepath.Dir(markerPath))
	return nil
}

// recoverSwap finishes a swap whose marker is still on disk. Temp files are
// synced before the marker is written, so rolling forward always produces a
// matched pair. It reports whether a marker was found.
func recoverSwap(indexPath string, logger zerolog.Logger) (bool, error) {
	markerPath := indexPath + swapMarkerSuffix
	data, err := os.ReadFile(markerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, ioErr(err, "read swap marker %s", markerPath)
	}
	var marker swapMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return false, newKindError(ErrCorruptIndex, err, "parse swap marker %s", markerPath)
	}
	for _, p := range marker.Pairs {
		if _, err := os.Stat(p.From); err != nil {
			if os.IsNotExist(err) {
				continue // already renamed
			}
			return false, ioErr(err, "stat %s", p.From)
		}
		if err := os.Rename(p.From, p.To); err != nil {
			return false, ioErr(err, "rename %s to %s", p.From, p.To)
		}
	}
	syncDirs(marker.Pairs)
	if err := os.Remove(markerPath); err != nil {
		return false, ioErr(err, "remove swap marker %s", markerPath)
	}
	syncDir(filepath.Dir(markerPath))
	logger.Warn().
		Str("marker", markerPath).
		Int("pairs", len(marker.Pairs)).
		Msg("finished interrupted gc swap")
	return true, nil
}

// writeMarker writes the marker to a temp file, syncs it and renames it into
// place, so the marker is either absent or complete.
func writeMarker(path string, marker swapMarker) error {
	data, err := json.Marshal(marker)
	if err != nil {
		return ioErr(err, "encode swap marker")
	}
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return ioErr(err, "create %s", tmpPath)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return ioErr(err, "write %s", tmpPath)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return ioErr(err, "sync %s", tmpPath)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return ioErr(err, "close %s", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return ioErr(err, "rename %s to %s", tmpPath, path)
	}
	syncDir(filepath.Dir(path))
	return nil
}

func syncDirs(pairs []swapPair) {
	seen := make(map[string]bool)
	for _, p := range pairs {
		dir := filepath.Dir(p.To)
		if !seen[dir] {
			seen[dir] = true
			syncDir(dir)
		}
	}
}

// syncDir fsyncs a directory so renames in it survive a crash. Errors are
// ignored; not every platform supports syncing directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func removeQuietly(paths ...string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}

func signedBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.Bytes(uint64(-n))
	}
	return humanize.Bytes(uint64(n))
}
