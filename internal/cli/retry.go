package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRetryCommand creates the retry command, which resubmits a dead-lettered
// job as a fresh one.
func NewRetryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <dead-letter-id>",
		Short: "Resubmit a dead-lettered job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			job, err := a.queue.Retry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dead letter %s resubmitted as job %s\n", args[0], job.ID)
			return nil
		},
	}
}
