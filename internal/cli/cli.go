// Package cli renders jet-bridge command output: colored labels, tables,
// reflection progress and coded errors. Color is used only on terminals
// and can be turned off with NO_COLOR.
package cli

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// OutputMode determines how output is formatted.
type OutputMode int

const (
	// ModeTTY enables colored output for interactive terminals.
	ModeTTY OutputMode = iota
	// ModePlain outputs plain text without colors (for pipes/CI).
	ModePlain
	// ModeJSON outputs structured JSON for programmatic consumption.
	ModeJSON
)

// ParseMode maps a --format value to a mode. Unknown values select the
// auto-detected mode.
func ParseMode(format string) OutputMode {
	switch format {
	case "json":
		return ModeJSON
	case "plain", "text":
		return ModePlain
	default:
		return DefaultConfig().Mode
	}
}

// Config holds CLI output configuration.
type Config struct {
	Mode   OutputMode
	Writer io.Writer
}

// DefaultConfig returns the auto-detected configuration:
//   - stdout is a TTY and NO_COLOR is unset -> ModeTTY
//   - otherwise -> ModePlain
func DefaultConfig() *Config {
	mode := ModePlain

	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		mode = ModeTTY
	}

	// https://no-color.org/
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		mode = ModePlain
	}

	return &Config{
		Mode:   mode,
		Writer: os.Stdout,
	}
}

// IsTTY returns true if running in interactive terminal mode.
func (c *Config) IsTTY() bool {
	return c.Mode == ModeTTY
}

// IsJSON returns true if running in JSON output mode.
func (c *Config) IsJSON() bool {
	return c.Mode == ModeJSON
}

var defaultCfg *Config

// Default returns the process-wide output configuration.
func Default() *Config {
	if defaultCfg == nil {
		defaultCfg = DefaultConfig()
	}
	return defaultCfg
}

// SetDefault replaces the process-wide configuration. Used by --format and
// tests.
func SetDefault(cfg *Config) {
	defaultCfg = cfg
}

// EnableColors returns true if colors should be used.
func EnableColors() bool {
	return Default().IsTTY()
}
