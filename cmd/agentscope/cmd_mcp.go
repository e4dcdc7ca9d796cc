package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/agentscope/internal/control"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.AddCommand(mcpListCmd, mcpEnableCmd, mcpDisableCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Manage optional external tool integrations",
}

var mcpListCmd = &cobra.Command{
	Use:   "list",
	Short: "List integrations and their state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		client := control.NewClient(cfg.ServerURL)
		mcps, err := client.MCPs(cmd.Context())
		if err != nil {
			return err
		}
		if len(mcps) == 0 {
			fmt.Fprintln(os.Stdout, "no integrations configured")
			return nil
		}
		for _, m := range mcps {
			state := "disabled"
			if m.Enabled {
				state = "enabled"
			}
			fmt.Fprintf(os.Stdout, "%-20s %-10s %s\n", m.ID, state, m.Name)
		}
		return nil
	},
}

var mcpEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable an integration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setMCP(cmd, args[0], true)
	},
}

var mcpDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable an integration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setMCP(cmd, args[0], false)
	},
}

func setMCP(cmd *cobra.Command, id string, enabled bool) error {
	cfg := loadConfig()
	setupLogging(cfg)

	client := control.NewClient(cfg.ServerURL)
	if err := client.SetMCPEnabled(cmd.Context(), id, enabled); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%s: enabled=%t\n", id, enabled)
	return nil
}
