package cli

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rcliao/stash-manager/internal/journal"
)

func init() {
	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the transaction journal",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print recent fold and merge transactions",
		Run:   runJournalShow,
	}
	show.Flags().IntP("limit", "l", 50, "Max entries (most recent); 0 for all")

	journalCmd.AddCommand(show)
	RootCmd.AddCommand(journalCmd)
}

func runJournalShow(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	if cfg.Journal.Dir == "" {
		exitErr("journal", errors.New("journal.dir is not configured"))
	}

	entries, err := journal.ReadAll(cfg.Journal.Dir, cfg.Journal.Prefix, limit)
	if err != nil {
		exitErr("read journal", err)
	}

	if textOutput() {
		sim := color.New(color.FgYellow).Sprint("sim")
		for _, e := range entries {
			mark := "   "
			if e.Simulated {
				mark = sim
			}
			ts := e.Time.Format("2006-01-02 15:04:05")
			switch e.Op {
			case "merge":
				fmt.Printf("%s %s merge %s -> %s (%d)\n", ts, mark, e.Source, e.Target, e.Units)
			default:
				fmt.Printf("%s %s %s %s\n", ts, mark, e.Op, e.Item)
			}
		}
		return
	}
	printJSON(entries)
}
