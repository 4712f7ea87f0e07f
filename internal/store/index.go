package store

import (
	"io"
	"os"
	"sort"
	"sync/atomic"
)

// Location is where a key's most recent value lives in the value log.
type Location struct {
	Offset uint64
	Length uint64
}

// Entry pairs a key with its location.
type Entry struct {
	Key string
	Location
}

// Index maps keys to value log locations. Lookups share a read lock;
// mutations take it exclusively.
type Index struct {
	mu        poisonRWMutex
	entries   map[string]Location
	liveBytes uint64
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[string]Location)}
}

// LoadIndex decodes a full index snapshot.
func LoadIndex(data []byte) (*Index, error) {
	entries, err := decodeIndex(data)
	if err != nil {
		return nil, err
	}
	idx := &Index{entries: entries}
	for _, loc := range entries {
		idx.liveBytes += loc.Length
	}
	return idx, nil
}

// Lookup returns the location of key.
func (i *Index) Lookup(key string) (loc Location, ok bool, err error) {
	err = i.mu.read(func() error {
		loc, ok = i.entries[key]
		return nil
	})
	return loc, ok, err
}

// Put inserts or replaces the location of key.
func (i *Index) Put(key string, loc Location) error {
	return i.mu.write(func() error {
		i.put(key, loc)
		return nil
	})
}

// Remove deletes key and reports whether it was present.
func (i *Index) Remove(key string) (existed bool, err error) {
	err = i.mu.write(func() error {
		existed = i.remove(key)
		return nil
	})
	return existed, err
}

// Persist writes the complete index to f, replacing its previous contents.
func (i *Index) Persist(f *indexFile) error {
	return i.mu.read(func() error {
		return f.rewrite(encodeIndex(i.entries))
	})
}

// Len returns the number of keys.
func (i *Index) Len() int {
	var n int
	_ = i.mu.read(func() error {
		n = len(i.entries)
		return nil
	})
	return n
}

// LiveBytes returns the sum of the lengths of all live entries.
func (i *Index) LiveBytes() uint64 {
	var n uint64
	_ = i.mu.read(func() error {
		n = i.liveBytes
		return nil
	})
	return n
}

// Entries returns a snapshot of the index sorted by offset.
func (i *Index) Entries() ([]Entry, error) {
	var out []Entry
	err := i.mu.read(func() error {
		out = i.sortedEntries()
		return nil
	})
	return out, err
}

// Keys returns all keys in lexical order.
func (i *Index) Keys() ([]string, error) {
	var keys []string
	err := i.mu.read(func() error {
		keys = make([]string, 0, len(i.entries))
		for k := range i.entries {
			keys = append(keys, k)
		}
		return nil
	})
	sort.Strings(keys)
	return keys, err
}

// put requires the write lock.
func (i *Index) put(key string, loc Location) {
	if old, ok := i.entries[key]; ok {
		i.liveBytes -= old.Length
	}
	i.entries[key] = loc
	i.liveBytes += loc.Length
}

// remove requires the write lock.
func (i *Index) remove(key string) bool {
	old, ok := i.entries[key]
	if !ok {
		return false
	}
	delete(i.entries, key)
	i.liveBytes -= old.Length
	return true
}

// sortedEntries requires the read lock.
func (i *Index) sortedEntries() []Entry {
	out := make([]Entry, 0, len(i.entries))
	for k, loc := range i.entries {
		out = append(out, Entry{Key: k, Location: loc})
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].Offset < out[b].Offset
	})
	return out
}

// indexFile is the on-disk mirror of the index. Every rewrite truncates it
// and writes a complete snapshot, so it never holds a partial index.
type indexFile struct {
	path string
	f    *os.File
	mu   poisonMutex
	size atomic.Int64
}

func openIndexFile(path string, flag int) (*indexFile, error) {
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, ioErr(err, "open index file %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ioErr(err, "stat index file %s", path)
	}
	x := &indexFile{path: path, f: f}
	x.size.Store(info.Size())
	return x, nil
}

// readAll returns the full contents of the file.
func (x *indexFile) readAll() ([]byte, error) {
	var data []byte
	err := x.mu.do(func() error {
		if _, err := x.f.Seek(0, io.SeekStart); err != nil {
			return ioErr(err, "seek index file %s", x.path)
		}
		var err error
		data, err = io.ReadAll(x.f)
		if err != nil {
			return ioErr(err, "read index file %s", x.path)
		}
		return nil
	})
	return data, err
}

func (x *indexFile) rewrite(data []byte) error {
	return x.mu.do(func() error {
		if err := x.f.Truncate(0); err != nil {
			return ioErr(err, "truncate index file %s", x.path)
		}
		if _, err := x.f.WriteAt(data, 0); err != nil {
			return ioErr(err, "write index file %s", x.path)
		}
		x.size.Store(int64(len(data)))
		return nil
	})
}

func (x *indexFile) sync() error {
	return x.mu.do(func() error {
		if err := x.f.Sync(); err != nil {
			return ioErr(err, "sync index file %s", x.path)
		}
		return nil
	})
}

func (x *indexFile) close() error {
	if err := x.f.Close(); err != nil {
		return ioErr(err, "close index file %s", x.path)
	}
	return nil
}
