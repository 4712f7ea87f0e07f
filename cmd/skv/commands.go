package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/freeeve/skv"
)

func (a *app) putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put KEY VALUE",
		Short: "Store VALUE under KEY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, closeFn, err := a.open()
			if err != nil {
				return err
			}
			defer func() {
				if cerr := closeFn(); err == nil {
					err = cerr
				}
			}()
			return s.Insert(args[0], []byte(args[1]))
		},
	}
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value stored under KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, closeFn, err := a.open()
			if err != nil {
				return err
			}
			defer func() {
				if cerr := closeFn(); err == nil {
					err = cerr
				}
			}()
			v, ok, err := s.Get(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return errors.Errorf("key %q not found", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(v))
			return nil
		},
	}
}

func (a *app) delCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "del KEY",
		Short: "Delete KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, closeFn, err := a.open()
			if err != nil {
				return err
			}
			defer func() {
				if cerr := closeFn(); err == nil {
					err = cerr
				}
			}()
			return s.Delete(args[0])
		},
	}
}

func (a *app) keysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List all keys in lexical order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, closeFn, err := a.open()
			if err != nil {
				return err
			}
			defer func() {
				if cerr := closeFn(); err == nil {
					err = cerr
				}
			}()
			keys, err := s.Keys()
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

func (a *app) gcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Compact the value log and the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, closeFn, err := a.open()
			if err != nil {
				return err
			}
			defer func() {
				if cerr := closeFn(); err == nil {
					err = cerr
				}
			}()
			report, err := s.GC()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "keys:      %s\n", humanize.Comma(int64(report.Keys)))
			fmt.Fprintf(out, "log:       %s -> %s\n", humanize.Bytes(report.LogBefore), humanize.Bytes(report.LogAfter))
			fmt.Fprintf(out, "index:     %s -> %s\n", humanize.Bytes(report.IndexBefore), humanize.Bytes(report.IndexAfter))
			fmt.Fprintf(out, "reclaimed: %s\n", humanize.Bytes(report.Reclaimed()))
			fmt.Fprintf(out, "took:      %s\n", report.Duration)
			return nil
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	var promText bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print store sizes and garbage ratio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, closeFn, err := a.open()
			if err != nil {
				return err
			}
			defer func() {
				if cerr := closeFn(); err == nil {
					err = cerr
				}
			}()
			out := cmd.OutOrStdout()
			if promText {
				reg := prometheus.NewRegistry()
				if err := reg.Register(skv.NewCollector("skv", s)); err != nil {
					return err
				}
				families, err := reg.Gather()
				if err != nil {
					return err
				}
				for _, mf := range families {
					if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
						return err
					}
				}
				return nil
			}
			st := s.Stats()
			fmt.Fprintf(out, "keys:    %s\n", humanize.Comma(int64(st.Keys)))
			fmt.Fprintf(out, "log:     %s\n", humanize.Bytes(st.LogBytes))
			fmt.Fprintf(out, "live:    %s\n", humanize.Bytes(st.LiveBytes))
			fmt.Fprintf(out, "garbage: %s (%.1f%%)\n", humanize.Bytes(st.GarbageBytes), st.GarbageRatio()*100)
			fmt.Fprintf(out, "index:   %s\n", humanize.Bytes(st.IndexBytes))
			return nil
		},
	}
	cmd.Flags().BoolVar(&promText, "prometheus", false, "Print metrics in the Prometheus text format.")
	return cmd
}
