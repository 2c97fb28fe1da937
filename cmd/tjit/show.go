package main

import (
	"fmt"
	"sort"

	"github.com/colorfulnotion/tjit/program"
	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <file> [function]",
		Short: "Print the states and rules of the functions in a file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			funcs, err := program.ParseFile(args[0])
			if err != nil {
				return err
			}
			names := make([]string, 0, len(funcs))
			if len(args) == 2 {
				if _, err := program.Lookup(funcs, args[1]); err != nil {
					return err
				}
				names = append(names, args[1])
			} else {
				for name := range funcs {
					names = append(names, name)
				}
				sort.Strings(names)
			}
			for _, name := range names {
				fmt.Fprint(cmd.OutOrStdout(), funcs[name].ToTree().String())
			}
			return nil
		},
	}
}
