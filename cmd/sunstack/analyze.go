package main

import(
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/skypies/util/histogram"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"sunstack/pkg/stack"
)

func newAnalyzeCommand() *cobra.Command {
	cfg := stack.NewConfig()
	var configPath string
	var showAll bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Score every frame's sharpness without stacking anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, &cfg, configPath); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, err := stack.NewContext(ctx, cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			records, err := stack.Analyze(ctx, c)
			if err != nil {
				return err
			}

			var sigmas []float64
			failures := 0
			h := histogram.Histogram{NumBuckets: 20, ValMin: 0, ValMax: 100}

			tw := table.NewWriter()
			tw.SetStyle(table.StyleRounded)
			tw.AppendHeader(table.Row{"frame", "time (UTC)", "sigma", "centroid"})
			for _, rec := range records {
				if rec.Err != nil {
					failures++
					if showAll {
						tw.AppendRow(table.Row{rec.Index, "-", "-", rec.Err.Error()})
					}
					continue
				}
				sigmas = append(sigmas, rec.Sigma)
				h.Add(histogram.ScalarVal(int(rec.Sigma * 1000)))
				if showAll {
					tw.AppendRow(table.Row{
						rec.Index,
						rec.Timestamp.Format("15:04:05.000"),
						fmt.Sprintf("%.5f", rec.Sigma),
						fmt.Sprintf("(%.1f, %.1f)", rec.Centroid.X, rec.Centroid.Y),
					})
				}
			}
			if showAll {
				fmt.Println(tw.Render())
			}

			if len(sigmas) == 0 {
				return fmt.Errorf("no frame yielded a centroid (%d failures)", failures)
			}

			fmt.Printf("%d frames analyzed, %d failed centroid detection\n", len(records), failures)
			fmt.Printf("sigma mean %.5f, stddev %.5f\n", stat.Mean(sigmas, nil), stat.StdDev(sigmas, nil))
			fmt.Printf("sigma distribution (x1000):\n%s\n", h.String())
			return nil
		},
	}

	configFlags(cmd, &cfg, &configPath)
	cmd.Flags().BoolVar(&showAll, "frames", false, "print the per-frame table, not just the summary")
	return cmd
}
