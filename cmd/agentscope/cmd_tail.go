package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/agentscope/internal/journal"
	"github.com/user/agentscope/internal/protocol"
	"github.com/user/agentscope/internal/transport"
)

func init() {
	rootCmd.AddCommand(tailCmd)
	tailCmd.Flags().Bool("record", false, "capture received events under the data dir")
}

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print the raw event stream (reconnects forever)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		record, _ := cmd.Flags().GetBool("record")
		var rec *journal.Recorder
		if record || cfg.Record {
			id := journal.NewCaptureID()
			r, err := journal.NewRecorder(cfg.DataDir, id)
			if err != nil {
				return fmt.Errorf("open capture: %w", err)
			}
			defer r.Close()
			rec = r
			slog.Info("recording session", "capture_id", string(id))
		}

		sess := transport.NewSession(cfg.StreamURL())
		sess.Handle(func(ev *protocol.Event) {
			fmt.Fprintf(os.Stdout, "%s step=%d %s\n", ev.Type, ev.Step, string(ev.Data))
			if rec != nil {
				if err := rec.Append(ev); err != nil {
					slog.Error("capture write failed", "error", err)
				}
			}
		})
		sess.OnStatus(func(st transport.Status) {
			fmt.Fprintf(os.Stderr, "-- %s\n", st)
		})

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigs)
			select {
			case <-sigs:
			case <-ctx.Done():
			}
			sess.Close()
			return nil
		})

		sess.Connect()
		return g.Wait()
	},
}
