package store

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector(t *testing.T) {
	s, _, _ := newTestStore(t, Config{})
	s.Insert("a", "1")
	s.Insert("b", "22")
	s.Insert("a", "333")
	s.Get("b")

	c := NewCollector("skv", s)
	if n := testutil.CollectAndCount(c); n != 12 {
		t.Errorf("CollectAndCount = %d, want 12", n)
	}

	want := `
# HELP skv_keys Live keys.
# TYPE skv_keys gauge
skv_keys 2
# HELP skv_garbage_bytes Value log bytes not reachable through the index.
# TYPE skv_garbage_bytes gauge
skv_garbage_bytes 1
# HELP skv_writes_total Successful Insert calls.
# TYPE skv_writes_total counter
skv_writes_total 3
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(want),
		"skv_keys", "skv_garbage_bytes", "skv_writes_total"); err != nil {
		t.Error(err)
	}

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}
}
