package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/status"
)

// NewStatusCommand creates the status command, which prints a job's state,
// progress, and checkpoint history.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the state, progress, and checkpoints of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			st, err := status.NewReader(a.store).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}

			fmt.Fprintf(out, "job:      %s\n", st.JobID)
			fmt.Fprintf(out, "state:    %s\n", st.State)
			fmt.Fprintf(out, "progress: %d%%\n", st.Progress)
			if len(st.Checkpoints) > 0 {
				fmt.Fprintln(out, "checkpoints:")
				for _, cp := range st.Checkpoints {
					fmt.Fprintf(out, "  %s  %s\n", cp.CreatedAt.Format("2006-01-02 15:04:05"), cp.Step)
				}
			}
			if st.Result != nil {
				fmt.Fprintf(out, "result:   %s\n", st.Result.Summary)
				if st.Result.Skipped {
					fmt.Fprintln(out, "          (duplicate content, reused previous analysis)")
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON")
	return cmd
}
