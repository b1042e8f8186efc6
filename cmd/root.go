package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the capture-3d command tree
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture-3d",
		Short: "Guided multi-angle video capture for 3D scanning",
		Long: `capture-3d walks an operator through recording a subject from three
(optionally four) camera angles, validates each take, and merges the
accepted takes into a single scan-ready video file.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newRecordCmd())
	cmd.AddCommand(newMergeCmd())

	return cmd
}
