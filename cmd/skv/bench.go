package main

import (
	"bytes"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (a *app) benchCmd() *cobra.Command {
	var (
		workers   int
		perWorker int
		valueSize int
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Insert distinct keys from concurrent writers, then read them all back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if workers < 1 || perWorker < 1 || valueSize < 0 {
				return errors.New("workers and keys must be positive, value_size non-negative")
			}
			s, closeFn, err := a.open()
			if err != nil {
				return err
			}
			defer func() {
				if cerr := closeFn(); err == nil {
					err = cerr
				}
			}()

			value := func(w, i int) []byte {
				prefix := fmt.Sprintf("bench-%d-%d:", w, i)
				return append([]byte(prefix), bytes.Repeat([]byte{'x'}, valueSize)...)
			}
			key := func(w, i int) string {
				return fmt.Sprintf("bench/%03d/%08d", w, i)
			}

			start := time.Now()
			g, ctx := errgroup.WithContext(cmd.Context())
			for w := 0; w < workers; w++ {
				h := s.Clone()
				g.Go(func() error {
					defer h.Close()
					for i := 0; i < perWorker; i++ {
						if ctx.Err() != nil {
							return ctx.Err()
						}
						if err := h.Insert(key(w, i), value(w, i)); err != nil {
							return err
						}
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			writeDur := time.Since(start)

			start = time.Now()
			g, ctx = errgroup.WithContext(cmd.Context())
			for w := 0; w < workers; w++ {
				h := s.Clone()
				g.Go(func() error {
					defer h.Close()
					for i := 0; i < perWorker; i++ {
						if ctx.Err() != nil {
							return ctx.Err()
						}
						got, ok, err := h.Get(key(w, i))
						if err != nil {
							return err
						}
						if !ok || !bytes.Equal(got, value(w, i)) {
							return errors.Errorf("key %s: wrong value after concurrent insert", key(w, i))
						}
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			readDur := time.Since(start)

			total := workers * perWorker
			a.logger.Info().
				Int("workers", workers).
				Int("keys", total).
				Dur("write", writeDur).
				Dur("read", readDur).
				Msg("bench complete")

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "inserted %s keys in %s (%s/s)\n",
				humanize.Comma(int64(total)), writeDur.Round(time.Millisecond), rate(total, writeDur))
			fmt.Fprintf(out, "verified %s keys in %s (%s/s)\n",
				humanize.Comma(int64(total)), readDur.Round(time.Millisecond), rate(total, readDur))
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 10, "Concurrent writers.")
	cmd.Flags().IntVar(&perWorker, "keys", 1000, "Keys per writer.")
	cmd.Flags().IntVar(&valueSize, "value_size", 100, "Padding bytes per value.")
	return cmd
}

func rate(n int, d time.Duration) string {
	if d <= 0 {
		return "inf"
	}
	return humanize.Comma(int64(float64(n) / d.Seconds()))
}
