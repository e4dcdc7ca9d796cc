package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/agentscope/internal/control"
)

func init() {
	rootCmd.AddCommand(skillCmd)
	skillCmd.AddCommand(skillListCmd, skillDocCmd)
}

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Inspect the server's loaded skills",
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded skills",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		client := control.NewClient(cfg.ServerURL)
		skills, err := client.Skills(cmd.Context())
		if err != nil {
			return err
		}
		if len(skills) == 0 {
			fmt.Fprintln(os.Stdout, "no skills loaded")
			return nil
		}
		for _, s := range skills {
			fmt.Fprintf(os.Stdout, "%-20s %-10s %s\n", s.Name, s.Status, s.Description)
		}
		return nil
	},
}

var skillDocCmd = &cobra.Command{
	Use:   "doc <name>",
	Short: "Fetch a skill's documentation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		client := control.NewClient(cfg.ServerURL)
		doc, err := client.SkillDoc(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, doc)
		return nil
	},
}
