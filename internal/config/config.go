// Package config loads command line settings for the skv tool from flags,
// SKV_* environment variables and an optional config file.
package config

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/freeeve/skv/internal/logx"
	"github.com/freeeve/skv/internal/store"
)

// EnvPrefix is prepended to every setting name to form its environment
// variable, e.g. SKV_LOG_FILE.
const EnvPrefix = "SKV"

// Compression names accepted by the compress setting.
const (
	CompressNone   = "none"
	CompressZstd   = "zstd"
	CompressSnappy = "snappy"
)

// Config holds the resolved settings.
type Config struct {
	LogFile           string
	IndexFile         string
	CacheBytes        int64
	SyncWrites        bool
	Compress          string
	LogLevel          zerolog.Level
	GCInterval        time.Duration
	GCMinGarbageRatio float64
}

// RegisterFlags adds every setting to fs with its default.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "",
		"Configuration file. Overridden by environment variables and flags.")
	fs.String("log_file", "kv_store.db", "Path of the value log.")
	fs.String("index_file", "kv_index.db", "Path of the index snapshot.")
	fs.String("cache", "0", "Value cache size, e.g. 64MB. 0 disables the cache.")
	fs.Bool("sync", false, "Fsync both files after every write.")
	fs.String("compress", CompressNone, "Value compression, one of [none, zstd, snappy].")
	fs.String("log_level", "info", "Log level, one of [debug, info, warn, error].")
	fs.Duration("gc_interval", 0, "Run background GC at this interval while the store is open.")
	fs.Float64("gc_min_garbage", 0.5, "Garbage ratio that triggers background GC.")
}

// Load binds fs to v, reads the config file named by the config setting if
// any, and resolves and validates the settings.
func Load(v *viper.Viper, fs *pflag.FlagSet) (Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, errors.Wrap(err, "binding flags")
	}
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "reading config %s", file)
		}
	}

	cacheBytes, err := humanize.ParseBytes(v.GetString("cache"))
	if err != nil {
		return Config{}, errors.Wrapf(err, "parsing cache size %q", v.GetString("cache"))
	}
	level, err := logx.ParseLevel(v.GetString("log_level"))
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		LogFile:           v.GetString("log_file"),
		IndexFile:         v.GetString("index_file"),
		CacheBytes:        int64(cacheBytes),
		SyncWrites:        v.GetBool("sync"),
		Compress:          strings.ToLower(v.GetString("compress")),
		LogLevel:          level,
		GCInterval:        v.GetDuration("gc_interval"),
		GCMinGarbageRatio: v.GetFloat64("gc_min_garbage"),
	}
	return cfg, cfg.Validate()
}

// Validate checks the settings for consistency.
func (c Config) Validate() error {
	switch {
	case c.LogFile == "":
		return errors.New("log_file must be set")
	case c.IndexFile == "":
		return errors.New("index_file must be set")
	case c.LogFile == c.IndexFile:
		return errors.Errorf("log_file and index_file are the same path %s", c.LogFile)
	case c.CacheBytes < 0:
		return errors.Errorf("cache size %d is negative", c.CacheBytes)
	case c.GCInterval < 0:
		return errors.Errorf("gc_interval %s is negative", c.GCInterval)
	case c.GCMinGarbageRatio <= 0 || c.GCMinGarbageRatio > 1:
		return errors.Errorf("gc_min_garbage %v must be in (0, 1]", c.GCMinGarbageRatio)
	}
	switch c.Compress {
	case CompressNone, CompressZstd, CompressSnappy:
	default:
		return errors.Errorf("unknown compression %q", c.Compress)
	}
	return nil
}

// StoreConfig converts the settings to a store.Config logging to logger.
func (c Config) StoreConfig(logger *zerolog.Logger) store.Config {
	return store.Config{
		SyncWrites:        c.SyncWrites,
		CacheBytes:        c.CacheBytes,
		GCInterval:        c.GCInterval,
		GCMinGarbageRatio: c.GCMinGarbageRatio,
		Logger:            logger,
	}
}

// Codec returns the value codec for the compress setting and a function
// releasing its resources.
func (c Config) Codec() (store.Codec[[]byte], func(), error) {
	switch c.Compress {
	case CompressZstd:
		zc, err := store.NewZstdCodec[[]byte](store.BytesCodec{}, 0)
		if err != nil {
			return nil, nil, errors.Wrap(err, "creating zstd codec")
		}
		return zc, zc.Close, nil
	case CompressSnappy:
		return store.SnappyCodec[[]byte]{Inner: store.BytesCodec{}}, func() {}, nil
	default:
		return store.BytesCodec{}, func() {}, nil
	}
}
