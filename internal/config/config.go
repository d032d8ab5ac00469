// Package config loads process-wide tuning parameters: tick intervals,
// default scan alignment, the result visibility cap, and the default
// text encoding (spec.md §4.3, §4.5, §4.7). It follows the teacher's
// layered precedence chain (defaults, global, project, CLI) over
// JSONC-tolerant config files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/hujson"

	"github.com/kestrelwire/memscan/internal/codec"
)

// Config holds every tunable the facade and CLI read at startup.
type Config struct {
	// LockWriteIntervalMS is how often the locked-write worker rewrites
	// every locked candidate's address (spec.md §4.7).
	LockWriteIntervalMS int `json:"lock_write_interval_ms"`
	// RefreshIntervalMS is the configured refresh tick, exposed through
	// [Config.RefreshInterval]. No component runs a refresh loop on it:
	// the facade does not re-read candidates' values on a timer.
	RefreshIntervalMS int `json:"refresh_interval_ms"`
	// DefaultAligned seeds scanner.Options.Aligned when a scan does not
	// explicitly choose a mode.
	DefaultAligned bool `json:"default_aligned"`
	// VisibilityCap is the default result visibility cap (0 = unlimited).
	VisibilityCap int `json:"visibility_cap"`
	// TextEncoding names the default [codec.TextEncoding]: "ascii",
	// "utf8", or "utf16le".
	TextEncoding string `json:"text_encoding"`
}

// Sources tracks which config files were loaded, for diagnostics.
type Sources struct {
	Global  string
	Project string
}

// Overrides carries CLI-supplied values. A nil field means "not set on
// the command line"; only non-nil fields override the merged file
// config (spec.md's layered precedence, defaults < global < project <
// CLI).
type Overrides struct {
	LockWriteIntervalMS *int
	RefreshIntervalMS   *int
	DefaultAligned      *bool
	VisibilityCap       *int
	TextEncoding        *string
}

// FileName is the default project config file name.
const FileName = ".memscan.json"

var (
	ErrFileNotFound = errors.New("config file not found")
	ErrFileRead     = errors.New("cannot read config file")
	ErrInvalid      = errors.New("invalid config file")
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LockWriteIntervalMS: 500,
		RefreshIntervalMS:   800,
		DefaultAligned:      false,
		VisibilityCap:       800,
		TextEncoding:        "utf8",
	}
}

// globalConfigPath returns $XDG_CONFIG_HOME/memscan/config.json, falling
// back to ~/.config/memscan/config.json. Returns "" if neither can be
// determined.
func globalConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok {
			return filepath.Join(after, "memscan", "config.json")
		}
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "memscan", "config.json")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "memscan", "config.json")
}

// Load resolves configuration with the following precedence (highest
// wins): built-in defaults, the global user config, the project config
// (.memscan.json in workDir, or configPath if non-empty), then cliOverrides.
func Load(workDir, configPath string, cliOverrides Overrides, env []string) (Config, Sources, error) {
	cfg := Default()

	var sources Sources

	globalCfg, globalPath, err := loadGlobalConfig(env)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Global = globalPath
	cfg = mergeConfig(cfg, globalCfg)

	projectCfg, projectPath, err := loadProjectConfig(workDir, configPath)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Project = projectPath
	cfg = mergeConfig(cfg, projectCfg)

	cfg = applyOverrides(cfg, cliOverrides)

	if err := validate(cfg); err != nil {
		return Config{}, Sources{}, err
	}

	return cfg, sources, nil
}

func loadGlobalConfig(env []string) (Config, string, error) {
	path := globalConfigPath(env)
	if path == "" {
		return Config{}, "", nil
	}

	cfg, loaded, err := loadConfigFile(path, false)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return cfg, path, nil
}

func loadProjectConfig(workDir, configPath string) (Config, string, error) {
	var (
		path      string
		mustExist bool
	)

	if configPath != "" {
		path = configPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}

		mustExist = true

		if _, err := os.Stat(path); err != nil {
			return Config{}, "", fmt.Errorf("%w: %s", ErrFileNotFound, configPath)
		}
	} else {
		path = filepath.Join(workDir, FileName)
		mustExist = false
	}

	cfg, loaded, err := loadConfigFile(path, mustExist)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return cfg, path, nil
}

func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled, same as the teacher's config loader
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		if mustExist {
			return Config{}, false, fmt.Errorf("%w: %s", ErrFileRead, path)
		}

		return Config{}, false, nil
	}

	cfg, parseErr := parseConfig(data)
	if parseErr != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrInvalid, path, parseErr)
	}

	return cfg, true, nil
}

func parseConfig(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

// mergeConfig overlays non-zero overlay fields onto base, mirroring the
// teacher's zero-value-means-unset convention: a merged-in zero means the
// file left the field unset. DefaultAligned defaults to false, so a file
// can turn it on, and setting it to false is the same as leaving it out.
func mergeConfig(base, overlay Config) Config {
	if overlay.LockWriteIntervalMS != 0 {
		base.LockWriteIntervalMS = overlay.LockWriteIntervalMS
	}

	if overlay.RefreshIntervalMS != 0 {
		base.RefreshIntervalMS = overlay.RefreshIntervalMS
	}

	if overlay.DefaultAligned {
		base.DefaultAligned = overlay.DefaultAligned
	}

	if overlay.VisibilityCap != 0 {
		base.VisibilityCap = overlay.VisibilityCap
	}

	if overlay.TextEncoding != "" {
		base.TextEncoding = overlay.TextEncoding
	}

	return base
}

func applyOverrides(cfg Config, o Overrides) Config {
	if o.LockWriteIntervalMS != nil {
		cfg.LockWriteIntervalMS = *o.LockWriteIntervalMS
	}

	if o.RefreshIntervalMS != nil {
		cfg.RefreshIntervalMS = *o.RefreshIntervalMS
	}

	if o.DefaultAligned != nil {
		cfg.DefaultAligned = *o.DefaultAligned
	}

	if o.VisibilityCap != nil {
		cfg.VisibilityCap = *o.VisibilityCap
	}

	if o.TextEncoding != nil {
		cfg.TextEncoding = *o.TextEncoding
	}

	return cfg
}

var ErrUnknownTextEncoding = errors.New("unknown text encoding")

func validate(cfg Config) error {
	if cfg.LockWriteIntervalMS <= 0 {
		return fmt.Errorf("%w: lock_write_interval_ms must be positive", ErrInvalid)
	}

	if cfg.RefreshIntervalMS <= 0 {
		return fmt.Errorf("%w: refresh_interval_ms must be positive", ErrInvalid)
	}

	if cfg.VisibilityCap < 0 {
		return fmt.Errorf("%w: visibility_cap must not be negative", ErrInvalid)
	}

	switch cfg.TextEncoding {
	case "ascii", "utf8", "utf16le":
	default:
		return fmt.Errorf("%w: %s", ErrUnknownTextEncoding, cfg.TextEncoding)
	}

	return nil
}

// LockWriteInterval returns the configured lock-write tick as a [time.Duration].
func (c Config) LockWriteInterval() time.Duration {
	return time.Duration(c.LockWriteIntervalMS) * time.Millisecond
}

// RefreshInterval returns the configured refresh tick as a [time.Duration].
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMS) * time.Millisecond
}

// Encoding returns the configured default [codec.TextEncoding].
func (c Config) Encoding() codec.TextEncoding {
	switch c.TextEncoding {
	case "ascii":
		return codec.ASCII
	case "utf16le":
		return codec.UTF16LE
	default:
		return codec.UTF8
	}
}

// Format renders cfg as formatted JSON, for the CLI's config-show command.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("formatting config: %w", err)
	}

	return string(data), nil
}
