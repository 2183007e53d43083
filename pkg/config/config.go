package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/gilchrisn/graph-codec-bench/pkg/bitio"
	"github.com/gilchrisn/graph-codec-bench/pkg/codec"
)

const EnvPrefix = "GRAPHCODEC"

// Config manages benchmark configuration using Viper
type Config struct {
	v   *viper.Viper
	out io.Writer
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Compression parameters
	v.SetDefault("compression.window_size", codec.DefaultWindowSize)
	v.SetDefault("compression.max_ref_count", codec.DefaultMaxRefCount)
	v.SetDefault("compression.min_interval_size", codec.DefaultMinIntervalSize)
	v.SetDefault("compression.zeta_k", codec.DefaultZetaK)
	v.SetDefault("compression.fixed_width", codec.DefaultFixedWidth)

	// Code selection per record field
	codes := codec.DefaultCodes()
	v.SetDefault("codes.outdegree", codes.Outdegree.String())
	v.SetDefault("codes.reference", codes.Reference.String())
	v.SetDefault("codes.block_count", codes.BlockCount.String())
	v.SetDefault("codes.blocks", codes.Blocks.String())
	v.SetDefault("codes.intervals", codes.Intervals.String())
	v.SetDefault("codes.residuals", codes.Residuals.String())

	// Performance parameters
	v.SetDefault("performance.threads", 1)

	// Logging parameters
	v.SetDefault("logging.level", "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{v: v, out: os.Stderr}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	if err := c.v.ReadInConfig(); err != nil {
		return fmt.Errorf("loading config %s: %w", path, err)
	}
	return nil
}

func (c *Config) WindowSize() int      { return c.v.GetInt("compression.window_size") }
func (c *Config) MaxRefCount() int     { return c.v.GetInt("compression.max_ref_count") }
func (c *Config) MinIntervalSize() int { return c.v.GetInt("compression.min_interval_size") }
func (c *Config) ZetaK() int           { return c.v.GetInt("compression.zeta_k") }
func (c *Config) FixedWidth() int      { return c.v.GetInt("compression.fixed_width") }

func (c *Config) Threads() int { return c.v.GetInt("performance.threads") }

func (c *Config) LogLevel() string { return c.v.GetString("logging.level") }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// SetLogOutput redirects loggers created afterwards.
func (c *Config) SetLogOutput(w io.Writer) {
	c.out = w
}

// Codes parses the per-field code names.
func (c *Config) Codes() (codec.Codes, error) {
	var codes codec.Codes
	fields := []struct {
		key  string
		kind *bitio.Kind
	}{
		{"codes.outdegree", &codes.Outdegree},
		{"codes.reference", &codes.Reference},
		{"codes.block_count", &codes.BlockCount},
		{"codes.blocks", &codes.Blocks},
		{"codes.intervals", &codes.Intervals},
		{"codes.residuals", &codes.Residuals},
	}
	for _, f := range fields {
		kind, err := bitio.ParseKind(c.v.GetString(f.key))
		if err != nil {
			return codes, fmt.Errorf("%w: %s: %v", codec.ErrInvalidParameters, f.key, err)
		}
		*f.kind = kind
	}
	return codes, nil
}

// Parameters builds validated compression parameters.
func (c *Config) Parameters() (codec.Parameters, error) {
	codes, err := c.Codes()
	if err != nil {
		return codec.Parameters{}, err
	}
	p := codec.Parameters{
		WindowSize:      c.WindowSize(),
		MaxRefCount:     c.MaxRefCount(),
		MinIntervalSize: c.MinIntervalSize(),
		ZetaK:           c.ZetaK(),
		FixedWidth:      c.FixedWidth(),
		Codes:           codes,
	}
	if err := p.Validate(); err != nil {
		return codec.Parameters{}, err
	}
	return p, nil
}

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        c.out,
		TimeFormat: "15:04:05",
		NoColor:    true,
	}).Level(level).With().Timestamp().Str("service", "benchmark").Logger()
}
