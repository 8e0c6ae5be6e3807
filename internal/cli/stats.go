package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show price database statistics",
		Run:   runStats,
	}

	pricesCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context(), getDBPath())
	if err != nil {
		exitErr("stats", err)
	}

	if textOutput() {
		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("%s %s (%d bytes)\n", bold("db:"), stats.DBPath, stats.DBSizeBytes)
		fmt.Printf("%s %d observations, %d kinds\n", bold("prices:"), stats.TotalObservations, stats.ActiveKinds)
		fmt.Printf("%s %d rows, %d traders\n", bold("supply:"), stats.SupplyEntries, stats.Traders)
		for _, src := range stats.Sources {
			fmt.Printf("  %-8s %d observations, %d kinds\n", src.Source, src.Count, src.Kinds)
		}
		return
	}
	printJSON(stats)
}
