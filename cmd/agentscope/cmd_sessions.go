package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/agentscope/internal/journal"
)

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded captures, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		infos, err := journal.List(cfg.DataDir)
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Fprintln(os.Stdout, "no captures")
			return nil
		}
		for _, info := range infos {
			fmt.Fprintf(os.Stdout, "%s  %s\n", info.ID, info.ModifiedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}
