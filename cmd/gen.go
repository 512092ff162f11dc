package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gman622/qroute/internal/intent"
)

var genCmd = &cobra.Command{
	Use:   "gen [dir]",
	Short: "Generate a synthetic intent backlog",
	Long: "gen writes a synthetic backlog (manifest plus intent files) for testing\n" +
		"routing behavior at scale. Scale 1.0 yields the full thousand-intent\n" +
		"workload; smaller scales yield proportionally smaller bundles.",
	Args: cobra.MaximumNArgs(1),
	RunE: runGen,
}

func init() {
	rootCmd.AddCommand(genCmd)
	genCmd.Flags().Float64("scale", 0.05, "per-tier intent count multiplier")
	genCmd.Flags().Int("horizon", 0, "spread deadlines across this many days")
	genCmd.Flags().String("project", "", "project name for the generated bundle")
	genCmd.Flags().Bool("force", false, "overwrite an existing bundle directory")
}

func runGen(cmd *cobra.Command, args []string) error {
	p := printer(cmd)
	dir := intentDir(args)

	scale, _ := cmd.Flags().GetFloat64("scale")
	horizon, _ := cmd.Flags().GetInt("horizon")
	project, _ := cmd.Flags().GetString("project")
	force, _ := cmd.Flags().GetBool("force")

	b := intent.Generate(intent.GenerateOptions{
		Scale:       scale,
		HorizonDays: horizon,
		Project:     project,
	})
	if err := intent.WriteBundle(b, dir, intent.WriteOptions{Overwrite: force}); err != nil {
		p.Error(err.Error())
		return err
	}

	p.Info(fmt.Sprintf("wrote %d intent(s) to %s", len(b.Intents), dir))
	return nil
}
