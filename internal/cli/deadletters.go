package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewDeadLettersCommand creates the dead-letters command, which lists jobs
// that exhausted their attempt budget.
func NewDeadLettersCommand(opts *RootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "dead-letters",
		Short: "List jobs that exhausted their retry budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			entries, err := a.queue.ListDeadLetters(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			if len(entries) == 0 {
				fmt.Fprintln(out, "no dead-lettered jobs")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s  job=%s contract=%s attempts=%d failed=%s\n  %s\n",
					e.ID, e.OriginalJobID, e.JobData.ContractID, e.Attempts,
					e.FailedAt.Format("2006-01-02 15:04:05"), e.Error)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON")
	return cmd
}
