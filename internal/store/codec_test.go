package store

import (
	"bytes"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string
	Count int
	Tags  []string
}

func TestJSONCodec(t *testing.T) {
	c := JSONCodec[record]{}
	in := record{Name: "a", Count: 3, Tags: []string{"x", "y"}}

	data, err := c.Encode(in)
	require.NoError(t, err)
	require.JSONEq(t, `{"Name":"a","Count":3,"Tags":["x","y"]}`, string(data))

	out, err := c.Decode(data)
	require.NoError(t, err)
	require.Equal(t, in, out)

	_, err = c.Decode([]byte("{"))
	require.Error(t, err)
}

func TestGobCodec(t *testing.T) {
	c := GobCodec[record]{}
	in := record{Name: "gob", Count: -7}

	data, err := c.Encode(in)
	require.NoError(t, err)
	out, err := c.Decode(data)
	require.NoError(t, err)
	require.Equal(t, in, out)

	_, err = c.Decode([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestStringCodecRejectsInvalidUTF8(t *testing.T) {
	_, err := StringCodec{}.Decode([]byte{0xc3, 0x28})
	require.Error(t, err)

	s, err := StringCodec{}.Decode([]byte("ok ✓"))
	require.NoError(t, err)
	require.Equal(t, "ok ✓", s)
}

func TestCompressingCodecs(t *testing.T) {
	zc, err := NewZstdCodec[string](StringCodec{}, zstd.SpeedFastest)
	require.NoError(t, err)
	defer zc.Close()

	codecs := map[string]Codec[string]{
		"zstd":   zc,
		"snappy": SnappyCodec[string]{Inner: StringCodec{}},
	}
	value := string(bytes.Repeat([]byte("compressible "), 200))

	for name, c := range codecs {
		t.Run(name, func(t *testing.T) {
			data, err := c.Encode(value)
			require.NoError(t, err)
			require.Less(t, len(data), len(value))

			out, err := c.Decode(data)
			require.NoError(t, err)
			require.Equal(t, value, out)

			_, err = c.Decode([]byte("definitely not compressed"))
			require.Error(t, err)
		})
	}
}

func TestStoreWithCompressingCodec(t *testing.T) {
	logPath, indexPath := testPaths(t)
	codec, err := NewZstdCodec[record](JSONCodec[record]{}, 0)
	require.NoError(t, err)
	defer codec.Close()

	s, err := New[record](logPath, indexPath, codec, Config{})
	require.NoError(t, err)

	in := record{Name: "compressed", Count: 42, Tags: []string{"a", "b", "c"}}
	require.NoError(t, s.Insert("r", in))
	require.NoError(t, s.Insert("r2", record{Name: "other"}))
	require.NoError(t, s.Delete("r2"))
	_, err = s.GC()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Load[record](logPath, indexPath, codec, Config{})
	require.NoError(t, err)
	defer s.Close()

	out, ok, err := s.Get("r")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, in, out)

	// Reading the same files with the wrong codec is a serialization error.
	plain, err := Load[record](logPath, indexPath, JSONCodec[record]{}, Config{})
	require.NoError(t, err)
	defer plain.Close()
	_, _, err = plain.Get("r")
	require.True(t, errors.Is(err, ErrSerialization), "got %v", err)
}

func FuzzInsertGet(f *testing.F) {
	f.Add("key", "value")
	f.Add("", "")
	f.Add("ключ", "значение")

	f.Fuzz(func(t *testing.T, key, value string) {
		s, logPath, indexPath := newTestStore(t, Config{})
		if err := s.Insert(key, value); err != nil {
			if !utf8.ValidString(key) && errors.Is(err, ErrSerialization) {
				return
			}
			t.Fatalf("Insert: %v", err)
		}
		got, ok, err := s.Get(key)
		if err != nil {
			// Values that are not valid UTF-8 are stored but cannot be read
			// back as strings.
			if errors.Is(err, ErrSerialization) {
				return
			}
			t.Fatalf("Get: %v", err)
		}
		if !ok || got != value {
			t.Fatalf("Get = %q, %v, want %q", got, ok, value)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}

		s, err = Load[string](logPath, indexPath, StringCodec{}, Config{})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		defer s.Close()
		if got, _, _ := s.Get(key); got != value {
			t.Fatalf("Get after Load = %q, want %q", got, value)
		}
	})
}
