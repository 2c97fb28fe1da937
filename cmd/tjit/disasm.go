package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/colorfulnotion/tjit/jit"
	"github.com/colorfulnotion/tjit/masm"
	"github.com/spf13/cobra"
)

func newDisasmCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <file> <function> [args...]",
		Short: "Run a function and disassemble the trampolines and every state it compiled",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.engineConfig(cmd)
			if err != nil {
				return err
			}
			fn, values, err := loadCall(args[0], args[1], args[2:])
			if err != nil {
				return err
			}
			e, err := jit.New(fn, cfg)
			if err != nil {
				return err
			}
			defer e.Close()

			out := cmd.OutOrStdout()
			result, runErr := e.Run(values)
			writeCode(out, e.CompiledCode())
			if runErr != nil {
				return runErr
			}
			fmt.Fprintf(out, "Result: %d\n", result)
			return nil
		},
	}
}

func writeCode(w io.Writer, code jit.Code) {
	section := func(title string, body []byte) {
		fmt.Fprintf(w, "%s (%d bytes):\n%s\n", title, len(body), masm.Disassemble(body))
	}
	section("entry", code.Entry)
	section("compiler", code.Compiler)
	section("grow", code.Grow)

	states := make([]int, 0, len(code.States))
	for s := range code.States {
		states = append(states, s)
	}
	sort.Ints(states)
	for _, s := range states {
		section(fmt.Sprintf("state %d", s), code.States[s])
	}
}
