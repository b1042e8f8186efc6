package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sandy7272/capture-3d/internal/export"
	"github.com/Sandy7272/capture-3d/internal/merge"
	"github.com/Sandy7272/capture-3d/internal/session"
)

func newMergeCmd() *cobra.Command {
	var (
		configPath string
		outputDir  string
	)

	cmd := &cobra.Command{
		Use:   "merge <take>...",
		Short: "Merge recorded take files into one video",
		Long: `Concatenates previously recorded take files, in argument order, into a
single export file. Takes with a shared container are concatenated
without re-encoding; mixed containers are normalized to MP4.`,
		Example: `  # Merge three takes into the current directory
  capture-3d merge front.mp4 left.mp4 right.mp4

  # Merge into a specific directory
  capture-3d merge -o ~/scans front.mp4 left.mp4 right.mp4`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if outputDir != "" {
				cfg.Output.Dir = outputDir
			}

			takes, err := loadTakes(args)
			if err != nil {
				return err
			}

			merger, err := merge.NewService(merge.NewEngine(cfg.Merge.FFmpeg, cfg.Merge.FFprobe))
			if err != nil {
				return fmt.Errorf("failed to create merge service: %w", err)
			}

			artifact, err := merger.Merge(cmd.Context(), takes)
			if err != nil {
				return fmt.Errorf("merge failed: %w", err)
			}

			path, err := export.Save(artifact, cfg.Output.Dir)
			if err != nil {
				return fmt.Errorf("failed to save merged file: %w", err)
			}

			slog.Info("merge: saved", "path", path, "duration", artifact.Duration)
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "export directory (overrides config)")

	return cmd
}

// loadTakes reads take files from disk in argument order. Angle and
// attempt metadata are positional; the merge only cares about order and
// container type.
func loadTakes(paths []string) ([]session.Take, error) {
	takes := make([]session.Take, 0, len(paths))
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read take %q: %w", path, err)
		}
		take := session.NewTake(session.Angle(i), data, mimeForPath(path), 0, 1)
		takes = append(takes, take)
	}
	return takes, nil
}

func mimeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	default:
		return "video/x-matroska"
	}
}
