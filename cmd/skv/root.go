package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/freeeve/skv"
	"github.com/freeeve/skv/internal/config"
	"github.com/freeeve/skv/internal/logx"
)

// app carries the state shared by all subcommands of one invocation.
type app struct {
	v      *viper.Viper
	cfg    config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:   "skv",
		Short: "skv: embedded append-only key-value store",
		Long: `
skv stores values in an append-only value log next to an index snapshot.
Overwrites and deletes leave garbage in the log until "skv gc" compacts it.

Settings come from flags, SKV_* environment variables and an optional
config file, in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logx.NewLoggerTo(cmd.ErrOrStderr(), cfg.LogLevel)
			return nil
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		a.putCmd(),
		a.getCmd(),
		a.delCmd(),
		a.keysCmd(),
		a.gcCmd(),
		a.statsCmd(),
		a.benchCmd(),
	)
	return root
}

// open loads the store when both files exist and creates it otherwise. The
// returned function syncs and closes it.
func (a *app) open() (*skv.Store[[]byte], func() error, error) {
	codec, release, err := a.cfg.Codec()
	if err != nil {
		return nil, nil, err
	}
	sc := a.cfg.StoreConfig(&a.logger)

	var s *skv.Store[[]byte]
	if exists(a.cfg.LogFile) && exists(a.cfg.IndexFile) {
		s, err = skv.Load[[]byte](a.cfg.LogFile, a.cfg.IndexFile, codec, sc)
	} else {
		s, err = skv.New[[]byte](a.cfg.LogFile, a.cfg.IndexFile, codec, sc)
	}
	if err != nil {
		release()
		return nil, nil, errors.Wrap(err, "opening store")
	}
	closeFn := func() error {
		defer release()
		syncErr := s.Sync()
		closeErr := s.Close()
		if syncErr != nil {
			return syncErr
		}
		return closeErr
	}
	return s, closeFn, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
