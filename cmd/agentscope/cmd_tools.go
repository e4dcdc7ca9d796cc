package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/agentscope/internal/control"
)

func init() {
	rootCmd.AddCommand(toolsCmd)
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the server's registered tools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		client := control.NewClient(cfg.ServerURL)
		tools, err := client.Tools(cmd.Context())
		if err != nil {
			return err
		}
		if len(tools) == 0 {
			fmt.Fprintln(os.Stdout, "no tools registered")
			return nil
		}
		for _, t := range tools {
			fmt.Fprintf(os.Stdout, "%-24s %-8s %s\n", t.Name, t.Source, t.Description)
		}
		return nil
	},
}
