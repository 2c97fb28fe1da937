package jit

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	BackendNative  = "native"
	BackendSandbox = "sandbox"
)

// Config controls how an Engine runs a function.
type Config struct {
	// Backend selects the Host: "native" runs generated code on the CPU,
	// "sandbox" runs it inside the Unicorn emulator.
	Backend string `toml:"backend"`
	// MinRows is the minimum initial tape depth in rows.
	MinRows int `toml:"min_rows"`
	// Trace prints a tape snapshot whenever the cursor is on row 0 and
	// when the machine halts.
	Trace bool `toml:"trace"`
	// RecordVisits keeps the full sequence of visited states in Stats.
	RecordVisits bool `toml:"record_visits"`

	// TraceOutput receives snapshots; nil means stdout.
	TraceOutput io.Writer `toml:"-"`
}

func DefaultConfig() Config {
	return Config{Backend: BackendNative}
}

// LoadConfig reads a TOML file over the defaults. Unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read %s: %w", path, err)
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("unknown key %q in %s", undecoded[0].String(), path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Backend {
	case "", BackendNative, BackendSandbox:
	default:
		return fmt.Errorf("%w %q", ErrUnknownBackend, c.Backend)
	}
	if c.MinRows < 0 {
		return fmt.Errorf("min_rows must not be negative, got %d", c.MinRows)
	}
	return nil
}

func (c Config) traceOutput() io.Writer {
	if c.TraceOutput != nil {
		return c.TraceOutput
	}
	return os.Stdout
}
