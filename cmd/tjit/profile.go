package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/colorfulnotion/tjit/jit"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/spf13/cobra"
)

func newProfileCmd(o *options) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "profile <file> <function> [args...]",
		Short: "Run a function and chart how often each state was entered",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.engineConfig(cmd)
			if err != nil {
				return err
			}
			fn, values, err := loadCall(args[0], args[1], args[2:])
			if err != nil {
				return err
			}
			result, stats, err := jit.Run(fn, values, cfg)
			if err != nil {
				return err
			}

			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer f.Close()
			page := components.NewPage()
			page.AddCharts(visitChart(fn.Name, stats))
			if err := page.Render(f); err != nil {
				return fmt.Errorf("render %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Result: %d\nwrote %s (%d cycles over %d states)\n", result, outPath, stats.Cycles, len(stats.Visits))
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "visits.html", "output HTML file")
	return cmd
}

// visitChart draws one bar per state, in state order.
func visitChart(name string, stats jit.Stats) *charts.Bar {
	states := make([]int, 0, len(stats.Visits))
	for s := range stats.Visits {
		states = append(states, s)
	}
	sort.Ints(states)

	labels := make([]string, len(states))
	visits := make([]opts.BarData, len(states))
	compiles := make([]opts.BarData, len(states))
	for i, s := range states {
		labels[i] = fmt.Sprintf("%d", s)
		visits[i] = opts.BarData{Value: stats.Visits[s]}
		compiles[i] = opts.BarData{Value: stats.Compiles[s]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s: state visits", name),
			Subtitle: fmt.Sprintf("%d cycles, %d tape growths, %d byte tape", stats.Cycles, stats.Grows, stats.TapeSize),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).
		AddSeries("visits", visits).
		AddSeries("compiles", compiles)
	return bar
}
