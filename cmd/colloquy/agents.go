package main

import (
	"github.com/spf13/cobra"
)

func newAgentsCmd() *cobra.Command {
	var agentsFile string

	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List the reviewer agents",
		Long:  "Lists the agents of a YAML roster, or the built-in agents when no file is given. Active agents are marked with '*'.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			roster, err := loadRoster(agentsFile)
			if err != nil {
				return err
			}
			renderAgents(cmd.OutOrStdout(), newTheme(cmd.OutOrStdout()), roster.Agents)
			return nil
		},
	}

	cmd.Flags().StringVar(&agentsFile, "agents", "", "YAML agent roster")
	return cmd
}
