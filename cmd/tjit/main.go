// tjit compiles tape machine functions to x86-64 on demand and runs them.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/colorfulnotion/tjit/jit"
	"github.com/colorfulnotion/tjit/log"
	"github.com/colorfulnotion/tjit/program"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// options are the flags shared by every subcommand.
type options struct {
	configPath string
	backend    string
	trace      bool
	minRows    int
	logLevel   string
	logFile    string
	debug      string
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}
	var logCloser io.Closer

	rootCmd := &cobra.Command{
		Use:           "tjit",
		Short:         "Tape machine JIT compiler",
		Version:       fmt.Sprintf("%s (%s, built %s)", Version, Commit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logFile != "" {
				c, err := log.InitLoggerWithFile(opts.logLevel, opts.logFile)
				if err != nil {
					return err
				}
				logCloser = c
			} else {
				log.InitLogger(opts.logLevel)
			}
			log.EnableModules(opts.debug)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetOut(out)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "TOML engine configuration")
	pf.StringVar(&opts.backend, "backend", jit.BackendNative, "execution backend: native or sandbox")
	pf.BoolVar(&opts.trace, "trace", false, "print the tape whenever the cursor is on row 0 and at the halting state")
	pf.IntVar(&opts.minRows, "min-rows", 0, "minimum initial tape depth in rows")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	pf.StringVar(&opts.logFile, "log-file", "", "also write JSON logs to this file")
	pf.StringVar(&opts.debug, "debug", "", "comma separated modules to enable debug logs for (jit,masm,tape,host,cli or all)")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newShowCmd(),
		newDisasmCmd(opts),
		newReplCmd(opts),
		newProfileCmd(opts),
	)
	return rootCmd
}

// engineConfig starts from the config file, if any, and applies the flags
// the user set explicitly.
func (o *options) engineConfig(cmd *cobra.Command) (jit.Config, error) {
	cfg := jit.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = jit.LoadConfig(o.configPath); err != nil {
			return cfg, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("backend") || o.configPath == "" {
		cfg.Backend = o.backend
	}
	if flags.Changed("trace") {
		cfg.Trace = o.trace
	}
	if flags.Changed("min-rows") {
		cfg.MinRows = o.minRows
	}
	cfg.TraceOutput = cmd.OutOrStdout()
	return cfg, cfg.Validate()
}

// loadCall parses file and resolves a call of name with textual args.
func loadCall(file, name string, args []string) (*program.Function, []uint64, error) {
	funcs, err := program.ParseFile(file)
	if err != nil {
		return nil, nil, err
	}
	return resolveCall(funcs, name, args)
}

func resolveCall(funcs map[string]*program.Function, name string, args []string) (*program.Function, []uint64, error) {
	fn, err := program.Lookup(funcs, name)
	if err != nil {
		return nil, nil, err
	}
	values, err := parseArgs(args)
	if err != nil {
		return nil, nil, err
	}
	if err := fn.CheckArgs(values); err != nil {
		return nil, nil, err
	}
	return fn, values, nil
}

// parseArgs accepts decimal, 0x hex, 0b binary and leading-zero octal.
func parseArgs(args []string) ([]uint64, error) {
	values := make([]uint64, len(args))
	for i, a := range args {
		v, err := strconv.ParseUint(a, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %q is not a non-negative integer", i, a)
		}
		values[i] = v
	}
	return values, nil
}
