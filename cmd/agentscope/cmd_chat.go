package main

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/user/agentscope/internal/engine"
	"github.com/user/agentscope/internal/journal"
	"github.com/user/agentscope/internal/transport"
	"github.com/user/agentscope/internal/tui"
	"github.com/user/agentscope/internal/usage"
)

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().Bool("record", false, "capture received events under the data dir")
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat and graph view",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		record, _ := cmd.Flags().GetBool("record")
		eng, cleanup, err := buildEngine(cfg.StreamURL(), cfg.DataDir, record || cfg.Record)
		if err != nil {
			return err
		}
		defer cleanup()

		estimator, err := usage.New(cfg.Model)
		if err != nil {
			// The TUI degrades gracefully without local estimates.
			slog.Warn("tokenizer unavailable", "model", cfg.Model, "error", err)
			estimator = nil
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		eng.Start(ctx)

		p := tea.NewProgram(tui.New(eng, estimator), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("run ui: %w", err)
		}
		return nil
	},
}

// buildEngine wires a transport session and optional capture recorder into
// an engine. The cleanup func closes the recorder.
func buildEngine(streamURL, dataDir string, record bool) (*engine.Engine, func(), error) {
	sess := transport.NewSession(streamURL)

	var rec *journal.Recorder
	cleanup := func() {}
	if record {
		id := journal.NewCaptureID()
		r, err := journal.NewRecorder(dataDir, id)
		if err != nil {
			return nil, nil, fmt.Errorf("open capture: %w", err)
		}
		rec = r
		cleanup = func() { r.Close() }
		slog.Info("recording session", "capture_id", string(id))
	}

	return engine.New(sess, rec), cleanup, nil
}
