package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/colorfulnotion/tjit/jit"
	"github.com/colorfulnotion/tjit/program"
	"github.com/spf13/cobra"
)

func newReplCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "repl <file>",
		Short: "Read 'function arg...' lines and print results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.engineConfig(cmd)
			if err != nil {
				return err
			}
			funcs, err := program.ParseFile(args[0])
			if err != nil {
				return err
			}
			var historyFile string
			if home, err := os.UserHomeDir(); err == nil {
				historyFile = filepath.Join(home, ".tjit_history")
			}
			rl, err := readline.NewEx(&readline.Config{
				Prompt:      "> ",
				HistoryFile: historyFile,
			})
			if err != nil {
				return err
			}
			defer rl.Close()
			return repl(rl, cmd.OutOrStdout(), funcs, cfg)
		},
	}
}

type lineReader interface {
	Readline() (string, error)
}

func repl(rl lineReader, out io.Writer, funcs map[string]*program.Function, cfg jit.Config) error {
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil { // io.EOF on Ctrl-D
			return nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		if fields[0] == "show" && len(fields) == 2 {
			if fn, err := program.Lookup(funcs, fields[1]); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			} else {
				fmt.Fprint(out, fn.ToTree().String())
			}
			continue
		}
		fn, values, err := resolveCall(funcs, fields[0], fields[1:])
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		result, _, err := jit.Run(fn, values, cfg)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "Result: %d\n", result)
	}
}
