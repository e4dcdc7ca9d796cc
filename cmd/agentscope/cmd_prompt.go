package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/agentscope/internal/control"
)

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.AddCommand(promptGetCmd, promptSetCmd)
	promptSetCmd.Flags().String("file", "", "read the new prompt from a file instead of stdin")
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "View or replace the agent's system prompt",
}

var promptGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current system prompt",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		client := control.NewClient(cfg.ServerURL)
		sp, err := client.SystemPrompt(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, sp.Content)
		return nil
	},
}

var promptSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Replace the system prompt (from --file or stdin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		path, _ := cmd.Flags().GetString("file")
		var content []byte
		var err error
		if path != "" {
			content, err = os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read prompt file: %w", err)
			}
		} else {
			content, err = io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
		}
		if len(content) == 0 {
			return fmt.Errorf("refusing to set an empty system prompt")
		}

		client := control.NewClient(cfg.ServerURL)
		if err := client.UpdateSystemPrompt(cmd.Context(), string(content)); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "system prompt updated")
		return nil
	},
}
