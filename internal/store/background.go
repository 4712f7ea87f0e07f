package store

import (
	"time"
)

// StartBackgroundGC starts a goroutine that runs GC every interval when at
// least minGarbageRatio of the value log is garbage. It is a no-op when
// background GC is already running.
func (st *Store[V]) StartBackgroundGC(interval time.Duration, minGarbageRatio float64) {
	if st.closed.Load() {
		return
	}
	st.s.startBackgroundGC(interval, minGarbageRatio)
}

// StopBackgroundGC stops the background GC goroutine and waits for a run in
// progress to finish.
func (st *Store[V]) StopBackgroundGC() {
	st.s.stopBackgroundGC()
}

func (s *shared[V]) startBackgroundGC(interval time.Duration, minGarbageRatio float64) {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	if s.bgStop != nil {
		return // already running
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.bgStop, s.bgDone = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.gcIfNeeded(minGarbageRatio)
			}
		}
	}()

	s.log.Info().
		Dur("interval", interval).
		Float64("min_garbage_ratio", minGarbageRatio).
		Msg("started background gc")
}

func (s *shared[V]) stopBackgroundGC() {
	s.bgMu.Lock()
	stop, done := s.bgStop, s.bgDone
	s.bgStop, s.bgDone = nil, nil
	s.bgMu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
	s.log.Info().Msg("stopped background gc")
}

// gcIfNeeded runs GC when the garbage ratio is at least minGarbageRatio.
func (s *shared[V]) gcIfNeeded(minGarbageRatio float64) {
	stats := s.snapshotStats()
	if stats.GarbageBytes == 0 || stats.GarbageRatio() < minGarbageRatio {
		return
	}
	if _, err := s.gc(); err != nil {
		s.log.Error().Err(err).Msg("background gc failed")
	}
}
