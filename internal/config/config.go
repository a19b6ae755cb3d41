// Package config reads the compositor's environment-variable configuration
// (§6). There is no file-backed or persisted configuration: the compositor
// is stateless across runs, so config is parsed once at startup into a
// plain struct rather than kept live behind a file watcher.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config is the full set of environment-derived settings read at startup.
type Config struct {
	VirtualOutputs string  // SWL_VIRTUAL_OUTPUTS
	MasterFactor   float64 // SWL_MASTER_FACTOR, clamped to [0.1, 0.9]
	NMaster        int     // SWL_N_MASTER, clamped to >= 1
	ModKey         ModKey  // SWL_MODKEY
	Run            string  // SWL_RUN, or resolved from XDG_CONFIG_HOME/HOME
	CursorTheme    string  // XCURSOR_THEME
	CursorSize     int     // XCURSOR_SIZE
	LogLevel       string  // SWL_LOG_LEVEL
}

// ModKey is the modifier key used for compositor keybindings (§6).
type ModKey int

const (
	ModSuper ModKey = iota
	ModAlt
)

// Default values, used whenever an environment variable is absent or
// fails to parse — grounded on the teacher's DefaultConfig struct-of-
// defaults pattern (internal/config/config.go), adapted to env vars.
const (
	DefaultMasterFactor = 0.5
	DefaultNMaster      = 1
	DefaultCursorTheme  = "default"
	DefaultCursorSize   = 24
)

// Load reads the full configuration from the process environment.
func Load() Config {
	cfg := Config{
		VirtualOutputs: os.Getenv("SWL_VIRTUAL_OUTPUTS"),
		MasterFactor:   clampFactor(parseFloat(os.Getenv("SWL_MASTER_FACTOR"), DefaultMasterFactor)),
		NMaster:        clampNMaster(parseInt(os.Getenv("SWL_N_MASTER"), DefaultNMaster)),
		ModKey:         parseModKey(os.Getenv("SWL_MODKEY")),
		CursorTheme:    stringOr(os.Getenv("XCURSOR_THEME"), DefaultCursorTheme),
		CursorSize:     parseInt(os.Getenv("XCURSOR_SIZE"), DefaultCursorSize),
		LogLevel:       os.Getenv("SWL_LOG_LEVEL"),
	}
	cfg.Run = resolveRun()
	return cfg
}

// clampFactor enforces the master-column fraction invariant from §3.
func clampFactor(f float64) float64 {
	if f < 0.1 {
		return 0.1
	}
	if f > 0.9 {
		return 0.9
	}
	return f
}

// clampNMaster enforces the master-count invariant from §3.
func clampNMaster(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func parseModKey(s string) ModKey {
	switch strings.ToLower(s) {
	case "alt":
		return ModAlt
	case "super", "logo", "win", "windows", "":
		return ModSuper
	default:
		return ModSuper
	}
}

// resolveRun implements the §6 SWL_RUN lookup chain: an explicit absolute
// path wins, otherwise swl/run is located under XDG_CONFIG_HOME or HOME.
func resolveRun() string {
	if run := os.Getenv("SWL_RUN"); run != "" {
		return run
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "swl", "run")
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", "swl", "run")
	}
	return ""
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func stringOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// String renders the modifier key the way keybinding-matching code would
// expect it spelled, useful for log lines.
func (m ModKey) String() string {
	switch m {
	case ModAlt:
		return "alt"
	default:
		return "super"
	}
}

// Validate returns an error describing the first invalid setting found,
// if any. Load() already clamps numeric ranges, so Validate mainly
// catches a malformed SWL_RUN path.
func Validate(cfg Config) error {
	if cfg.Run != "" && !filepath.IsAbs(cfg.Run) {
		return fmt.Errorf("config: SWL_RUN must be an absolute path, got %q", cfg.Run)
	}
	return nil
}
