package main

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// run executes one skv invocation against the store in dir.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{
		"--log_file", filepath.Join(dir, "kv_store.db"),
		"--index_file", filepath.Join(dir, "kv_index.db"),
	}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestPutGetDel(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "put", "key1", "one")
	require.NoError(t, err)
	_, err = run(t, dir, "put", "key2", "two")
	require.NoError(t, err)

	out, err := run(t, dir, "get", "key2")
	require.NoError(t, err)
	require.Equal(t, "two\n", out)

	out, err = run(t, dir, "keys")
	require.NoError(t, err)
	require.Equal(t, "key1\nkey2\n", out)

	_, err = run(t, dir, "del", "key1")
	require.NoError(t, err)
	_, err = run(t, dir, "del", "key1")
	require.Error(t, err)
	_, err = run(t, dir, "get", "key1")
	require.ErrorContains(t, err, "not found")

	out, err = run(t, dir, "gc")
	require.NoError(t, err)
	require.Contains(t, out, "keys:      1")

	out, err = run(t, dir, "get", "key2")
	require.NoError(t, err)
	require.Equal(t, "two\n", out)
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "put", "k", "aaaa")
	require.NoError(t, err)
	_, err = run(t, dir, "put", "k", "bbbb")
	require.NoError(t, err)

	out, err := run(t, dir, "stats")
	require.NoError(t, err)
	require.Contains(t, out, "keys:    1")
	require.Contains(t, out, "garbage: 4 B (50.0%)")

	out, err = run(t, dir, "stats", "--prometheus")
	require.NoError(t, err)
	require.Contains(t, out, "skv_keys 1")
	require.Contains(t, out, "skv_garbage_bytes 4")
}

func TestCompressedStore(t *testing.T) {
	dir := t.TempDir()
	value := strings.Repeat("zstd ", 100)

	_, err := run(t, dir, "--compress", "zstd", "put", "k", value)
	require.NoError(t, err)
	out, err := run(t, dir, "--compress", "zstd", "get", "k")
	require.NoError(t, err)
	require.Equal(t, value+"\n", out)

	out, err = run(t, dir, "stats")
	require.NoError(t, err)
	require.NotContains(t, out, "log:     500 B")
}

func TestBench(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, dir, "bench", "--workers", "4", "--keys", "50", "--value_size", "8")
	require.NoError(t, err)
	require.Contains(t, out, "inserted 200 keys")
	require.Contains(t, out, "verified 200 keys")

	out, err = run(t, dir, "keys")
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 200)
}

func TestArgs(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "put", "only-key")
	require.Error(t, err)
	_, err = run(t, dir, "--compress", "lz4", "keys")
	require.Error(t, err)
}
