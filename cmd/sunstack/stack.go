package main

import(
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sunstack/pkg/stack"
)

func newStackCommand() *cobra.Command {
	cfg := stack.NewConfig()
	var configPath string

	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Run the full pipeline: calibrate, rank, align, derotate, drizzle",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, &cfg, configPath); err != nil {
				return err
			}

			// Ctrl-C cancels between frames, not mid-frame.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.Verbosity > 0 {
				log.Printf("Final configuration:-\n\n%s\n", cfg.AsYaml())
			}

			c, err := stack.NewContext(ctx, cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := stack.Run(ctx, c)
			if err != nil {
				return err
			}

			if err := stack.SaveResult(cfg, res); err != nil {
				return err
			}

			fmt.Println(res.Provenance.Table())
			fmt.Println("Wrote", cfg.Output)
			return nil
		},
	}

	configFlags(cmd, &cfg, &configPath)
	return cmd
}
