package store

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecodeIndex(t *testing.T) {
	entries := map[string]Location{
		"key1":  {Offset: 0, Length: 3},
		"key2":  {Offset: 3, Length: 3},
		"":      {Offset: 6, Length: 0},
		"ключ": {Offset: 6, Length: 1 << 40},
	}
	got, err := decodeIndex(encodeIndex(entries))
	if err != nil {
		t.Fatalf("decodeIndex: %v", err)
	}
	if diff := cmp.Diff(entries, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeIndexLayout(t *testing.T) {
	data := encodeIndex(map[string]Location{"ab": {Offset: 7, Length: 9}})
	want := make([]byte, 0, 34)
	want = binary.LittleEndian.AppendUint64(want, 1)
	want = binary.LittleEndian.AppendUint64(want, 2)
	want = append(want, 'a', 'b')
	want = binary.LittleEndian.AppendUint64(want, 7)
	want = binary.LittleEndian.AppendUint64(want, 9)
	if diff := cmp.Diff(want, data); diff != "" {
		t.Errorf("layout mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeIndexEmpty(t *testing.T) {
	got, err := decodeIndex(nil)
	if err != nil {
		t.Fatalf("decodeIndex(nil): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}

	got, err = decodeIndex(encodeIndex(nil))
	if err != nil {
		t.Fatalf("decodeIndex(empty map): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestDecodeIndexCorrupt(t *testing.T) {
	valid := encodeIndex(map[string]Location{"key": {Offset: 1, Length: 2}})

	u64 := func(vals ...uint64) []byte {
		var b []byte
		for _, v := range vals {
			b = binary.LittleEndian.AppendUint64(b, v)
		}
		return b
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"short header", []byte{1, 2, 3}},
		{"count too large", u64(1 << 60)},
		{"truncated key length", valid[:12]},
		{"key length too large", append(u64(1, 1000), make([]byte, 16)...)},
		{"truncated location", valid[:len(valid)-4]},
		{"trailing bytes", append(append([]byte{}, valid...), 0)},
		{"invalid utf8 key", append(append(u64(1, 2), 0xff, 0xfe), u64(0, 1)...)},
		{"offset overflow", append(append(u64(1, 1), 'k'), u64(^uint64(0), 2)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeIndex(tt.data)
			if !errors.Is(err, ErrCorruptIndex) {
				t.Errorf("decodeIndex = %v, want ErrCorruptIndex", err)
			}
		})
	}
}

func TestIndexOperations(t *testing.T) {
	idx := NewIndex()

	if err := idx.Put("a", Location{Offset: 0, Length: 10}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := idx.Put("b", Location{Offset: 10, Length: 5}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Replace a; its old 10 bytes stop counting as live.
	if err := idx.Put("a", Location{Offset: 15, Length: 2}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	loc, ok, err := idx.Lookup("a")
	if err != nil || !ok {
		t.Fatalf("Lookup(a) = %v, %v, %v", loc, ok, err)
	}
	if loc != (Location{Offset: 15, Length: 2}) {
		t.Errorf("Lookup(a) = %+v, want {15 2}", loc)
	}
	if idx.LiveBytes() != 7 {
		t.Errorf("LiveBytes = %d, want 7", idx.LiveBytes())
	}

	existed, err := idx.Remove("b")
	if err != nil || !existed {
		t.Errorf("Remove(b) = %v, %v, want true", existed, err)
	}
	existed, err = idx.Remove("b")
	if err != nil || existed {
		t.Errorf("second Remove(b) = %v, %v, want false", existed, err)
	}
	if idx.Len() != 1 || idx.LiveBytes() != 2 {
		t.Errorf("Len = %d, LiveBytes = %d, want 1, 2", idx.Len(), idx.LiveBytes())
	}
	if _, ok, _ := idx.Lookup("b"); ok {
		t.Error("Lookup(b) found a removed key")
	}
}

func TestIndexEntriesSortedByOffset(t *testing.T) {
	idx := NewIndex()
	idx.Put("z", Location{Offset: 0, Length: 1})
	idx.Put("a", Location{Offset: 20, Length: 1})
	idx.Put("m", Location{Offset: 10, Length: 1})

	entries, err := idx.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	var keys []string
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	if diff := cmp.Diff([]string{"z", "m", "a"}, keys); diff != "" {
		t.Errorf("Entries order (-want +got):\n%s", diff)
	}

	sorted, err := idx.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "m", "z"}, sorted); diff != "" {
		t.Errorf("Keys (-want +got):\n%s", diff)
	}
}

func TestIndexPersistIsFullSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	f, err := openIndexFile(path, os.O_RDWR|os.O_CREATE)
	if err != nil {
		t.Fatalf("openIndexFile: %v", err)
	}
	defer f.close()

	idx := NewIndex()
	for i, k := range []string{"one", "two", "three"} {
		idx.Put(k, Location{Offset: uint64(i * 10), Length: 10})
	}
	if err := idx.Persist(f); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	big, _ := os.ReadFile(path)

	// A smaller snapshot must not leave the tail of the bigger one behind.
	idx.Remove("three")
	idx.Remove("two")
	if err := idx.Persist(f); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) >= len(big) {
		t.Fatalf("snapshot did not shrink: %d >= %d bytes", len(data), len(big))
	}
	loaded, err := LoadIndex(data)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if loaded.Len() != 1 || loaded.LiveBytes() != 10 {
		t.Errorf("loaded Len = %d, LiveBytes = %d, want 1, 10", loaded.Len(), loaded.LiveBytes())
	}
}
