package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/agentscope/internal/engine"
	"github.com/user/agentscope/internal/journal"
	"github.com/user/agentscope/internal/transport"
)

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Bool("events", false, "print each recorded event as it is applied")
}

var replayCmd = &cobra.Command{
	Use:   "replay <capture-id>",
	Short: "Rebuild timeline and graph from a recorded capture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		entries, err := journal.Read(cfg.DataDir, journal.CaptureID(args[0]))
		if err != nil {
			return err
		}
		verbose, _ := cmd.Flags().GetBool("events")
		if verbose {
			for _, entry := range entries {
				if entry.Event == nil {
					continue
				}
				fmt.Fprintf(os.Stdout, "%6d  %s step=%d\n", entry.Seq, entry.Event.Type, entry.Event.Step)
			}
		}

		// The session is never connected; the engine only replays.
		eng := engine.New(transport.NewSession(cfg.StreamURL()), nil)
		eng.Replay(entries)

		fmt.Fprintf(os.Stdout, "capture %s: %d events\n\n", args[0], len(entries))

		fmt.Fprintln(os.Stdout, "timeline:")
		for _, item := range eng.Timeline() {
			text := item.Payload["content"]
			if text == nil {
				text = item.Payload["name"]
			}
			if text == nil {
				text = item.Payload["message"]
			}
			fmt.Fprintf(os.Stdout, "  [%s] %v\n", item.Kind, text)
		}

		nodes, edges := eng.Graph()
		fmt.Fprintf(os.Stdout, "\ngraph: %d nodes, %d edges, %d turns\n", len(nodes), len(edges), eng.Turn())
		turn := -1
		for _, n := range nodes {
			if n.Turn != turn {
				turn = n.Turn
				fmt.Fprintf(os.Stdout, "turn %d\n", turn)
			}
			fmt.Fprintf(os.Stdout, "  [%s] %s\n", n.Status, n.Label)
		}

		u := eng.Usage()
		fmt.Fprintf(os.Stdout, "\ntokens: prompt=%d completion=%d total=%d\n",
			u.PromptTokens, u.CompletionTokens, u.TotalTokens)
		return nil
	},
}
