package main

import (
	"fmt"

	"github.com/colorfulnotion/tjit/jit"
	"github.com/colorfulnotion/tjit/log"
	"github.com/spf13/cobra"
)

func newRunCmd(opts *options) *cobra.Command {
	var stats bool
	cmd := &cobra.Command{
		Use:   "run <file> <function> [args...]",
		Short: "Run a function and print its result",
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
			log.Debug(log.CliMonitoring, "running", "func", fn.Name, "args", values, "backend", cfg.Backend)

			result, st, err := jit.Run(fn, values, cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Result: %d\n", result)
			if stats {
				fmt.Fprintf(out, "cycles=%d states=%d grows=%d tape=%d\n", st.Cycles, len(st.Compiles), st.Grows, st.TapeSize)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&stats, "stats", false, "print run statistics")
	return cmd
}
