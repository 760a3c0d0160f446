package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/worker"
)

// NewServeCommand creates the serve command, which runs the worker pool
// until interrupted.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis worker pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			p, err := a.buildPipeline()
			if err != nil {
				return err
			}

			concurrency := a.cfg.Queue.Workers
			if workers > 0 {
				concurrency = workers
			}
			pool := worker.NewPool(a.queue, p, a.logger,
				worker.WithConcurrency(concurrency),
				worker.WithPollInterval(a.cfg.Queue.PollInterval.Std()),
				worker.WithStaleAfter(a.cfg.Queue.StaleAfter.Std()),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return pool.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "override worker count")
	return cmd
}
