package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ShristiC7/Contract-Intelligence-Engine/pkg/types"
)

// NewSubmitCommand creates the submit command, which enqueues one contract
// file for analysis and prints the job id.
func NewSubmitCommand(opts *RootOptions) *cobra.Command {
	var contractID, userID string

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Enqueue a contract file for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("contract file: %w", err)
			}
			if contractID == "" {
				contractID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + "-" + uuid.NewString()[:8]
			}

			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			job, err := a.queue.Enqueue(cmd.Context(), types.JobPayload{
				FilePath:   path,
				ContractID: contractID,
				UserID:     userID,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "job %s queued for contract %s\n", job.ID, contractID)
			return nil
		},
	}

	cmd.Flags().StringVar(&contractID, "contract-id", "", "contract identifier (derived from the filename if unset)")
	cmd.Flags().StringVar(&userID, "user-id", "", "submitting user")
	return cmd
}
