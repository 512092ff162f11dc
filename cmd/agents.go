package cmd

import (
	"github.com/spf13/cobra"

	"github.com/gman622/qroute/internal/agent"
)

var agentsCmd = &cobra.Command{
	Use:   "agents [file]",
	Short: "Show the agent fleet",
	Long:  "agents lists the fleet a plan would staff from: the built-in fleet, or the pool defined in the given TOML file.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAgents,
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}

func runAgents(cmd *cobra.Command, args []string) error {
	p := printer(cmd)

	pool := agent.DefaultPool()
	if len(args) > 0 {
		var err error
		pool, err = agent.LoadPool(args[0])
		if err != nil {
			p.Error(err.Error())
			return err
		}
	}

	p.AgentsTable(pool)
	return nil
}
