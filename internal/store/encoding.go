package store

import (
	"encoding/binary"
	"unicode/utf8"
)

// Index snapshot encoding, little endian:
// - count (uint64)
// - count times:
//   - key length (uint64)
//   - key bytes (UTF-8)
//   - offset (uint64)
//   - length (uint64)
//
// This is the bincode layout of a map from string to a pair of u64, so
// index files written by older builds of the store still decode.

const (
	u64Size        = 8
	entryFixedSize = 3 * u64Size // keyLen + offset + length
)

func encodeIndex(entries map[string]Location) []byte {
	size := u64Size
	for k := range entries {
		size += entryFixedSize + len(k)
	}
	buf := make([]byte, size)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(len(entries)))
	pos := u64Size
	for k, loc := range entries {
		binary.LittleEndian.PutUint64(buf[pos:], uint64(len(k)))
		pos += u64Size
		pos += copy(buf[pos:], k)
		binary.LittleEndian.PutUint64(buf[pos:], loc.Offset)
		pos += u64Size
		binary.LittleEndian.PutUint64(buf[pos:], loc.Length)
		pos += u64Size
	}
	return buf
}

func decodeIndex(data []byte) (map[string]Location, error) {
	// A store that was created and closed without a single mutation leaves
	// an empty index file behind.
	if len(data) == 0 {
		return make(map[string]Location), nil
	}
	if len(data) < u64Size {
		return nil, corruptErr("index header too short: got %d bytes, need %d", len(data), u64Size)
	}
	count := binary.LittleEndian.Uint64(data[0:8])
	pos := u64Size
	// Every entry needs at least entryFixedSize bytes, which bounds count
	// before it is used as a map size hint.
	if count > uint64(len(data)-pos)/entryFixedSize {
		return nil, corruptErr("index claims %d entries in %d bytes", count, len(data))
	}
	entries := make(map[string]Location, count)
	for i := uint64(0); i < count; i++ {
		if len(data)-pos < u64Size {
			return nil, corruptErr("entry %d: truncated key length", i)
		}
		keyLen := binary.LittleEndian.Uint64(data[pos:])
		pos += u64Size
		if keyLen > uint64(len(data)-pos) {
			return nil, corruptErr("entry %d: key length %d exceeds remaining %d bytes", i, keyLen, len(data)-pos)
		}
		key := data[pos : pos+int(keyLen)]
		pos += int(keyLen)
		if !utf8.Valid(key) {
			return nil, corruptErr("entry %d: key is not valid UTF-8", i)
		}
		if len(data)-pos < 2*u64Size {
			return nil, corruptErr("entry %d: truncated location", i)
		}
		loc := Location{
			Offset: binary.LittleEndian.Uint64(data[pos:]),
			Length: binary.LittleEndian.Uint64(data[pos+u64Size:]),
		}
		pos += 2 * u64Size
		if loc.Offset+loc.Length < loc.Offset {
			return nil, corruptErr("entry %d: offset %d + length %d overflows", i, loc.Offset, loc.Length)
		}
		entries[string(key)] = loc
	}
	if pos != len(data) {
		return nil, corruptErr("%d trailing bytes after %d entries", len(data)-pos, count)
	}
	return entries, nil
}
