package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/storage"
)

// Set via -ldflags at release build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "contractintel %s\n", Version)
			fmt.Fprintf(out, "build time:    %s\n", BuildTime)
			fmt.Fprintf(out, "build mode:    %s\n", storage.BuildMode)
			fmt.Fprintf(out, "sqlite driver: %s\n", storage.DriverName)
		},
	}
}
