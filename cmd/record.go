package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Sandy7272/capture-3d/internal/capture"
	"github.com/Sandy7272/capture-3d/internal/config"
	"github.com/Sandy7272/capture-3d/internal/flow"
	"github.com/Sandy7272/capture-3d/internal/merge"
	"github.com/Sandy7272/capture-3d/internal/narration"
	"github.com/Sandy7272/capture-3d/internal/prefs"
	"github.com/Sandy7272/capture-3d/internal/session"
	"github.com/Sandy7272/capture-3d/internal/tutorial"
	"github.com/Sandy7272/capture-3d/internal/ui"
)

func newRecordCmd() *cobra.Command {
	var (
		configPath    string
		device        string
		outputDir     string
		angles        int
		skipTutorials bool
		debug         bool
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Run the guided capture flow",
		Long: `Starts the interactive capture flow: a short tutorial, then one
recording per angle with automatic validation, and finally a merge of
the accepted takes into a single file ready for export.`,
		Example: `  # Record with defaults (/dev/video0, three angles)
  capture-3d record

  # Record a four-angle session from a specific camera
  capture-3d record --device /dev/video2 --angles 4

  # Use a configuration file
  capture-3d record --config capture.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if device != "" {
				cfg.Capture.Device = device
			}
			if outputDir != "" {
				cfg.Output.Dir = outputDir
			}
			if angles != 0 {
				cfg.Flow.Angles = angles
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			// The TUI owns the terminal; route logs elsewhere.
			if err := setupLogging(debug); err != nil {
				return err
			}

			var skipPref *bool
			if cmd.Flags().Changed("skip-tutorials") {
				skipPref = &skipTutorials
			}
			return runCaptureFlow(cfg, skipPref)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")
	cmd.Flags().StringVarP(&device, "device", "d", "", "camera device path (overrides config)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "export directory (overrides config)")
	cmd.Flags().IntVar(&angles, "angles", 0, "number of angles, 3 or 4 (overrides config)")
	cmd.Flags().BoolVar(&skipTutorials, "skip-tutorials", false, "set or clear the \"don't show again\" preference for all tutorial decks")
	cmd.Flags().BoolVar(&debug, "debug", false, "write debug logs to capture-3d.log")

	return cmd
}

func runCaptureFlow(cfg *config.Config, skipTutorials *bool) error {
	store, err := prefs.Open(cfg.Tutorial.PrefsDB)
	if err != nil {
		return fmt.Errorf("failed to open preference store: %w", err)
	}
	defer store.Close()

	if skipTutorials != nil {
		names := []string{flow.DeckPrep}
		for _, a := range session.Angles(cfg.Flow.Angles) {
			names = append(names, flow.AngleDeckName(a))
		}
		for _, name := range names {
			if err := store.SetSkip(name, *skipTutorials); err != nil {
				return fmt.Errorf("failed to update tutorial preference: %w", err)
			}
		}
	}

	var narrator tutorial.Narrator = narration.Silent{}
	if cfg.Tutorial.Narration {
		if n, ok := narration.NewExecNarrator(); ok {
			narrator = n
		} else {
			slog.Warn("record: no speech synthesizer found, narration disabled")
		}
	}

	seq, err := tutorial.NewSequencer(tutorial.Options{
		Narrator: narrator,
		Store:    store,
	})
	if err != nil {
		return fmt.Errorf("failed to create tutorial sequencer: %w", err)
	}

	resolution, err := capture.ParseResolution(cfg.Capture.Resolution)
	if err != nil {
		return fmt.Errorf("invalid capture resolution: %w", err)
	}
	camera, err := capture.NewCamera(capture.Config{
		Device:      cfg.Capture.Device,
		Resolution:  resolution,
		FPS:         cfg.Capture.FPS,
		BitrateKbps: cfg.Capture.BitrateKbps,
	})
	if err != nil {
		return fmt.Errorf("failed to create camera: %w", err)
	}
	camera.SetSegmentHook(func(seq, size int) {
		slog.Debug("record: chunk flushed", "seq", seq, "size", size)
	})

	merger, err := merge.NewService(merge.NewEngine(cfg.Merge.FFmpeg, cfg.Merge.FFprobe))
	if err != nil {
		return fmt.Errorf("failed to create merge service: %w", err)
	}

	ctrl, err := flow.New(flow.Options{
		Recorder:        camera,
		Merger:          merger,
		Tutorial:        seq,
		AngleCount:      cfg.Flow.Angles,
		RecordDuration:  cfg.RecordDuration(),
		SegmentInterval: cfg.SegmentInterval(),
		MinTakeDuration: cfg.MinTakeDuration(),
	})
	if err != nil {
		return fmt.Errorf("failed to create flow controller: %w", err)
	}
	defer func() {
		if err := ctrl.Shutdown(); err != nil {
			slog.Error("record: shutdown failed", "error", err)
		}
	}()

	model := ui.New(ctrl, cfg.RecordDuration(), cfg.Output.Dir)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("capture flow failed: %w", err)
	}
	return nil
}

// loadConfig reads the YAML file at path, or returns defaults when no
// path was given
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// setupLogging points slog away from the terminal so it cannot garble
// the TUI. Debug runs log to a file, normal runs discard.
func setupLogging(debug bool) error {
	if !debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return nil
	}
	f, err := os.OpenFile("capture-3d.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))
	return nil
}
