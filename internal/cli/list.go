package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/stash-manager/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the latest price of every kind",
		Run:   runList,
	}

	cmd.Flags().StringP("source", "s", "", "Filter by source")
	cmd.Flags().IntP("limit", "l", 50, "Max results")
	cmd.Flags().Bool("kinds-only", false, "Only output kind ids")

	pricesCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	source, _ := cmd.Flags().GetString("source")
	limit, _ := cmd.Flags().GetInt("limit")
	kindsOnly, _ := cmd.Flags().GetBool("kinds-only")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	prices, err := s.ListPrices(cmd.Context(), store.ListPriceParams{
		Source: source,
		Limit:  limit,
	})
	if err != nil {
		exitErr("list", err)
	}

	if kindsOnly {
		for _, p := range prices {
			fmt.Println(p.KindID)
		}
		return
	}
	if textOutput() {
		for _, p := range prices {
			fmt.Printf("%-32s %12s  %s\n", p.KindID, formatPrice(p.Price), p.Source)
		}
		return
	}
	printJSON(prices)
}
