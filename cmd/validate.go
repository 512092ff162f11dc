package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gman622/qroute/internal/intent"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Validate an intent backlog without planning it",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	p := printer(cmd)
	dir := intentDir(args)

	b, err := intent.Load(dir)
	if err != nil {
		p.Error(err.Error())
		return err
	}

	errs := intent.Validate(b)
	p.ValidationResult(dir, len(b.Intents), errs)
	if len(errs) > 0 {
		return fmt.Errorf("%d validation error(s) in %s", len(errs), dir)
	}
	return nil
}
