package main

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/thepudds/hopscotch"
)

// benchConfig is the TOML layout read by -config. Example:
//
//	keys = 100000
//	workers = 4
//	hash = "djb2"
//
//	[map]
//	variant = "hybrid"
//	initial_capacity = 53
//
//	[log]
//	level = "debug"
//	file = "hopbench.log"
type benchConfig struct {
	Keys    int    `toml:"keys"`
	Workers int    `toml:"workers"`
	Hash    string `toml:"hash"`

	Map hopscotch.Config `toml:"map"`
	Log logConfig        `toml:"log"`
}

type logConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

func defaultConfig() benchConfig {
	return benchConfig{
		Keys:    10000,
		Workers: 4,
		Hash:    "int",
		Map:     hopscotch.Config{Variant: hopscotch.VariantHopscotch},
		Log: logConfig{
			Level:      "info",
			MaxSizeMB:  64,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

func loadConfig(path string) (benchConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "decoding %s", path)
	}
	return cfg, nil
}

func (c benchConfig) validate() error {
	if c.Keys <= 0 {
		return errors.Errorf("keys must be positive, got %d", c.Keys)
	}
	if c.Workers <= 0 {
		return errors.Errorf("workers must be positive, got %d", c.Workers)
	}
	switch c.Hash {
	case "int", "djb2", "xxhash":
	default:
		return errors.Errorf("unknown hash %q (want int, djb2 or xxhash)", c.Hash)
	}
	switch c.Map.Variant {
	case hopscotch.VariantHopscotch, hopscotch.VariantHybrid:
	default:
		return errors.Wrapf(hopscotch.ErrUnknownVariant, "variant %q", c.Map.Variant)
	}
	return nil
}

// newLogger writes JSON logs to stderr, or to a rotating file when
// cfg.File is set.
func newLogger(cfg logConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, errors.Wrapf(err, "log level %q", cfg.Level)
	}

	sink := zapcore.Lock(os.Stderr)
	if cfg.File != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		})
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, level)
	return zap.New(core), nil
}
