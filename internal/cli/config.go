package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/qlarr-surveys/survey-engine/internal/engine"
	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// Config holds the defaults read from a TOML file. Command flags override
// every value.
type Config struct {
	Navigation NavigationConfig `toml:"navigation"`
	Store      StoreConfig      `toml:"store"`
	Log        LogConfig        `toml:"log"`
}

// NavigationConfig holds navigation defaults.
type NavigationConfig struct {
	// Mode is one of group_by_group, question_by_question, all_in_one.
	Mode        string `toml:"mode"`
	SkipInvalid bool   `toml:"skip_invalid"`
	Lang        string `toml:"lang"`
}

// StoreConfig locates the design store.
type StoreConfig struct {
	// Path is the SQLite database file. Empty means no store.
	Path string `toml:"path"`
}

// LogConfig configures the stderr logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level"`
	// Format is text or json.
	Format string `toml:"format"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Navigation: NavigationConfig{
			Mode: string(ir.ModeGroupByGroup),
			Lang: engine.DefaultLang,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads the TOML file at path over the defaults. An empty path
// returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	if _, err := ir.ParseNavigationMode(c.Navigation.Mode); err != nil {
		return err
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format %q: must be text or json", c.Log.Format)
	}
	return nil
}

// Mode returns the configured navigation mode.
func (c Config) Mode() ir.NavigationMode {
	mode, err := ir.ParseNavigationMode(c.Navigation.Mode)
	if err != nil {
		return ir.ModeGroupByGroup
	}
	return mode
}

func parseLevel(s string) (slog.Level, bool) {
	switch s {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// newLogger builds the stderr logger. Verbose forces debug level.
func newLogger(cfg LogConfig, verbose bool, w io.Writer) *slog.Logger {
	level, _ := parseLevel(cfg.Level)
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
