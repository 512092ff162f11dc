package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gman622/qroute/internal/config"
	"github.com/gman622/qroute/internal/journal"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show journalled routing sessions",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Int("limit", 20, "max sessions to list")
	historyCmd.Flags().String("session", "", "show per-intent results for one session")
	historyCmd.Flags().String("journal", "", "journal database path (default from config)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	p := printer(cmd)
	cfg, err := config.Load()
	if err != nil {
		p.Error(err.Error())
		return err
	}

	path, _ := cmd.Flags().GetString("journal")
	if path == "" {
		path = cfg.Output.JournalPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	j, err := journal.Open(ctx, path)
	if err != nil {
		p.Error(err.Error())
		return err
	}
	defer j.Close()

	if sessionID, _ := cmd.Flags().GetString("session"); sessionID != "" {
		results, err := j.Results(ctx, sessionID)
		if err != nil {
			p.Error(err.Error())
			return err
		}
		for _, r := range results {
			line := fmt.Sprintf("%-24s %-16s %-10s %-10s q=%.2f attempt %d",
				r.IntentID, string(r.Profile), r.Model, string(r.Status), r.Quality, r.Attempt)
			if r.ErrorMessage != "" {
				line += "  " + r.ErrorMessage
			}
			p.Info(line)
		}
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	sessions, err := j.Recent(ctx, limit)
	if err != nil {
		p.Error(err.Error())
		return err
	}
	p.History(sessions)
	return nil
}
