package store

import (
	"testing"
	"time"
)

func waitForGC(t *testing.T, s *Store[string], runs uint64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.Stats().GCRuns < runs {
		if time.Now().After(deadline) {
			t.Fatalf("background GC did not run %d time(s) in time", runs)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBackgroundGC(t *testing.T) {
	s, _, _ := newTestStore(t, Config{})
	for i := 0; i < 10; i++ {
		s.Insert("k", "some value")
	}

	s.StartBackgroundGC(10*time.Millisecond, 0.5)
	s.StartBackgroundGC(10*time.Millisecond, 0.5) // no-op
	waitForGC(t, s, 1)
	s.StopBackgroundGC()
	s.StopBackgroundGC() // no-op

	stats := s.Stats()
	if stats.GarbageBytes != 0 || stats.LogBytes != 10 {
		t.Errorf("GarbageBytes = %d, LogBytes = %d, want 0, 10", stats.GarbageBytes, stats.LogBytes)
	}
	if got, _ := mustGet(t, s, "k"); got != "some value" {
		t.Errorf("Get = %q", got)
	}
}

func TestBackgroundGCBelowThreshold(t *testing.T) {
	s, _, _ := newTestStore(t, Config{})
	s.Insert("a", "0123456789")
	s.Insert("b", "0123456789")
	s.Insert("c", "0123456789")
	s.Insert("a", "x")

	// 10 of 31 bytes are garbage.
	s.StartBackgroundGC(5*time.Millisecond, 0.5)
	time.Sleep(50 * time.Millisecond)
	s.StopBackgroundGC()

	if runs := s.Stats().GCRuns; runs != 0 {
		t.Errorf("GCRuns = %d, want 0", runs)
	}
}

func TestConfigStartsBackgroundGC(t *testing.T) {
	s, _, _ := newTestStore(t, Config{GCInterval: 10 * time.Millisecond})
	if s.Stats().GCRuns != 0 {
		t.Fatal("GC ran on an empty store")
	}
	s.Insert("k", "old")
	s.Insert("k", "new")
	waitForGC(t, s, 1)

	// Closing the last handle stops the goroutine.
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	s.s.bgMu.Lock()
	running := s.s.bgStop != nil
	s.s.bgMu.Unlock()
	if running {
		t.Error("background GC still running after Close")
	}
}
