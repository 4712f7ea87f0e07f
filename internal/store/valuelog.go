package store

import (
	"io"
	"os"
	"sync/atomic"
)

// ValueLog is the append-only file holding serialized values at byte offsets.
// It has no header and no per-entry framing; the index is the only thing
// that knows where an entry starts and how long it is.
//
// Offsets are handed out by an atomic cursor, so concurrent reservations
// never overlap. Reads and writes of the file itself are serialized by mu.
type ValueLog struct {
	path   string
	f      *os.File
	mu     poisonMutex
	cursor atomic.Uint64
}

// openValueLog opens the log at path with the given flags and positions the
// cursor at the current end of file.
func openValueLog(path string, flag int) (*ValueLog, error) {
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, ioErr(err, "open value log %s", path)
	}
	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, ioErr(err, "seek value log %s", path)
	}
	l := &ValueLog{path: path, f: f}
	l.cursor.Store(uint64(end))
	return l, nil
}

// Reserve advances the cursor by n and returns the previous value, which is
// the start of the caller's private byte range [offset, offset+n).
func (l *ValueLog) Reserve(n uint64) uint64 {
	return l.cursor.Add(n) - n
}

// Size returns the cursor position, i.e. the logical length of the log.
func (l *ValueLog) Size() uint64 {
	return l.cursor.Load()
}

// Path returns the file path of the log.
func (l *ValueLog) Path() string {
	return l.path
}

// WriteAt writes b at offset while holding the log lock.
func (l *ValueLog) WriteAt(offset uint64, b []byte) error {
	return l.withLock(func() error {
		return l.writeAt(offset, b)
	})
}

// ReadAt reads exactly n bytes at offset while holding the log lock.
func (l *ValueLog) ReadAt(offset, n uint64) ([]byte, error) {
	var out []byte
	err := l.withLock(func() error {
		var err error
		out, err = l.readAt(offset, n)
		return err
	})
	return out, err
}

// Sync flushes everything written so far to stable storage.
func (l *ValueLog) Sync() error {
	return l.withLock(func() error {
		if err := l.f.Sync(); err != nil {
			return ioErr(err, "sync value log %s", l.path)
		}
		return nil
	})
}

// Close closes the underlying file.
func (l *ValueLog) Close() error {
	if err := l.f.Close(); err != nil {
		return ioErr(err, "close value log %s", l.path)
	}
	return nil
}

func (l *ValueLog) withLock(fn func() error) error {
	return l.mu.do(fn)
}

// writeAt requires the log lock.
func (l *ValueLog) writeAt(offset uint64, b []byte) error {
	if _, err := l.f.WriteAt(b, int64(offset)); err != nil {
		return ioErr(err, "write %d bytes at %d to %s", len(b), offset, l.path)
	}
	return nil
}

// readAt requires the log lock.
func (l *ValueLog) readAt(offset, n uint64) ([]byte, error) {
	// Refuse ranges past the cursor before allocating; a corrupt index can
	// promise arbitrarily large lengths.
	end := offset + n
	if end < offset || end > l.cursor.Load() {
		return nil, newKindError(ErrTruncatedRead, nil,
			"range [%d,%d) past end of %s (%d bytes)", offset, end, l.path, l.cursor.Load())
	}
	buf := make([]byte, n)
	got, err := l.f.ReadAt(buf, int64(offset))
	if uint64(got) < n {
		if err == nil || err == io.EOF {
			return nil, newKindError(ErrTruncatedRead, nil,
				"read %d of %d bytes at %d from %s", got, n, offset, l.path)
		}
		return nil, ioErr(err, "read %d bytes at %d from %s", n, offset, l.path)
	}
	return buf, nil
}
