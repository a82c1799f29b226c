// Package config loads flowstate configuration from CUE.
//
// A config file is unified with an embedded schema, validated, and laid over
// the built-in defaults. Environment variables and CLI flags override the
// result.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/flowstate/internal/weather"
)

//go:embed schema.cue
var schemaCUE string

// EnvAPIKey names the environment variable holding the weather API key.
const EnvAPIKey = "FLOWSTATE_WEATHER_API_KEY"

// Config is the resolved configuration.
type Config struct {
	Weather  WeatherConfig
	History  HistoryConfig
	Log      LogConfig
	Devtools DevtoolsConfig
}

// WeatherConfig configures the weather fetcher.
type WeatherConfig struct {
	Zip          string
	Units        string
	APIKey       string
	URLTemplate  string
	Timeout      time.Duration // zero means no timeout
	DiscardStale bool
}

// HistoryConfig configures the session log. An empty Path disables it.
type HistoryConfig struct {
	Path          string
	SnapshotEvery int
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string
	Format string
}

// DevtoolsConfig configures the time-travel console.
type DevtoolsConfig struct {
	Enabled bool
	MaxAge  int
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Weather: WeatherConfig{
			Zip:         weather.DefaultZip,
			Units:       "imperial",
			URLTemplate: weather.DefaultURLTemplate,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Devtools: DevtoolsConfig{
			Enabled: true,
			MaxAge:  50,
		},
	}
}

// Policy returns the weather policy the config selects.
func (c Config) Policy() weather.Policy {
	if c.Weather.DiscardStale {
		return weather.LatestOnly
	}
	return weather.LastWriteWins
}

// Level parses the configured log level.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// fileConfig mirrors the schema. Pointers distinguish "absent" from zero.
type fileConfig struct {
	Weather *struct {
		Zip          *string `json:"zip"`
		Units        *string `json:"units"`
		APIKey       *string `json:"apiKey"`
		URLTemplate  *string `json:"urlTemplate"`
		Timeout      *string `json:"timeout"`
		DiscardStale *bool   `json:"discardStale"`
	} `json:"weather"`
	History *struct {
		Path          *string `json:"path"`
		SnapshotEvery *int    `json:"snapshotEvery"`
	} `json:"history"`
	Log *struct {
		Level  *string `json:"level"`
		Format *string `json:"format"`
	} `json:"log"`
	Devtools *struct {
		Enabled *bool `json:"enabled"`
		MaxAge  *int  `json:"maxAge"`
	} `json:"devtools"`
}

// Load reads a CUE config file. A missing file yields the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates CUE source against the schema and applies it to the
// defaults. filename is used in error positions.
func Parse(filename string, src []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("config schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return Config{}, fmt.Errorf("config %s: %s", filename, details(err))
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("config %s: %s", filename, details(err))
	}

	var fc fileConfig
	if err := unified.Decode(&fc); err != nil {
		return Config{}, fmt.Errorf("config %s: %s", filename, details(err))
	}

	cfg := Default()
	if err := fc.apply(&cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", filename, err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from the environment via lookup (os.LookupEnv in
// production).
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if key, ok := lookup(EnvAPIKey); ok && key != "" {
		cfg.Weather.APIKey = key
	}
}

func (fc fileConfig) apply(cfg *Config) error {
	if w := fc.Weather; w != nil {
		setString(&cfg.Weather.Zip, w.Zip)
		setString(&cfg.Weather.Units, w.Units)
		setString(&cfg.Weather.APIKey, w.APIKey)
		setString(&cfg.Weather.URLTemplate, w.URLTemplate)
		if w.Timeout != nil {
			d, err := time.ParseDuration(*w.Timeout)
			if err != nil {
				return fmt.Errorf("weather.timeout: %w", err)
			}
			if d < 0 {
				return fmt.Errorf("weather.timeout: must not be negative")
			}
			cfg.Weather.Timeout = d
		}
		if w.DiscardStale != nil {
			cfg.Weather.DiscardStale = *w.DiscardStale
		}
	}
	if h := fc.History; h != nil {
		setString(&cfg.History.Path, h.Path)
		if h.SnapshotEvery != nil {
			cfg.History.SnapshotEvery = *h.SnapshotEvery
		}
	}
	if l := fc.Log; l != nil {
		setString(&cfg.Log.Level, l.Level)
		setString(&cfg.Log.Format, l.Format)
	}
	if d := fc.Devtools; d != nil {
		if d.Enabled != nil {
			cfg.Devtools.Enabled = *d.Enabled
		}
		if d.MaxAge != nil {
			cfg.Devtools.MaxAge = *d.MaxAge
		}
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func details(err error) string {
	return strings.TrimSpace(cueerrors.Details(err, nil))
}
