// Package config loads the settings of the dabble command from a .env file,
// DABBLE_* environment variables and command line flags, in increasing order
// of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/lindend/dabble/internal/db"
	"github.com/lindend/dabble/internal/kv"
	"github.com/rs/zerolog"
)

const envPrefix = "DABBLE_"

type Config struct {
	Engine     string
	DataDir    string
	Iterations int
	Options    db.Options
	LogLevel   zerolog.Level
	// Args are the positional arguments left after the flags, starting with
	// the command.
	Args []string
}

func defaults() Config {
	return Config{
		Engine:     "segmented",
		DataDir:    "data",
		Iterations: 1000,
		Options:    db.DefaultOptions(),
		LogLevel:   zerolog.InfoLevel,
	}
}

// Load reads envFiles (".env" when none are given; missing files are
// ignored), then the environment, then parses args.
func Load(args []string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := defaults()
	if err := cfg.fromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.fromFlags(args); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func lookupInt(name string, target *int) error {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, name, err)
	}
	*target = n
	return nil
}

func lookupString(name string, target *string) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		*target = v
	}
}

func (c *Config) fromEnv() error {
	lookupString("ENGINE", &c.Engine)
	lookupString("DATA", &c.DataDir)

	if err := errors.Join(
		lookupInt("ITERATIONS", &c.Iterations),
		lookupInt("MAX_SEGMENT_SIZE", &c.Options.MaxSegmentSize),
		lookupInt("MAX_MEMTABLE_SIZE", &c.Options.MaxMemtableSize),
		lookupInt("SPARSE_INDEX_SIZE", &c.Options.SparseIndexSize),
	); err != nil {
		return err
	}

	if v, ok := os.LookupEnv(envPrefix + "RECLAIM"); ok {
		r, err := ParseReclaim(v)
		if err != nil {
			return err
		}
		c.Options.Reclaim = r
	}

	if v, ok := os.LookupEnv(envPrefix + "LOG_LEVEL"); ok {
		level, err := zerolog.ParseLevel(v)
		if err != nil {
			return fmt.Errorf("invalid %sLOG_LEVEL: %w", envPrefix, err)
		}
		c.LogLevel = level
	}
	return nil
}

func (c *Config) fromFlags(args []string) error {
	fs := flag.NewFlagSet("dabble", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&c.Engine, "engine", c.Engine, "storage engine")
	fs.StringVar(&c.DataDir, "data", c.DataDir, "data directory")
	fs.IntVar(&c.Iterations, "iterations", c.Iterations, "iterations per benchmark")
	fs.IntVar(&c.Options.MaxSegmentSize, "max-segment-size", c.Options.MaxSegmentSize, "records per segment")
	fs.IntVar(&c.Options.MaxMemtableSize, "max-memtable-size", c.Options.MaxMemtableSize, "keys per memtable and table")
	fs.IntVar(&c.Options.SparseIndexSize, "sparse-index-size", c.Options.SparseIndexSize, "index markers per table")
	reclaim := fs.String("reclaim", c.Options.Reclaim.String(), "keep or reclaim superseded files")
	logLevel := fs.String("log-level", c.LogLevel.String(), "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := ParseReclaim(*reclaim)
	if err != nil {
		return err
	}
	c.Options.Reclaim = r

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	c.LogLevel = level

	c.Args = fs.Args()
	return nil
}

func ParseReclaim(s string) (kv.Reclaim, error) {
	switch s {
	case kv.KeepSuperseded.String():
		return kv.KeepSuperseded, nil
	case kv.ReclaimSuperseded.String():
		return kv.ReclaimSuperseded, nil
	}
	return 0, fmt.Errorf("invalid reclaim mode %q, expected keep or reclaim", s)
}
