package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rcliao/stash-manager/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <kind-id>",
		Short: "Show the market price of an item kind",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	cmd.Flags().Bool("history", false, "Return all versions (newest first)")
	cmd.Flags().IntP("version", "v", 0, "Specific version number")

	pricesCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	history, _ := cmd.Flags().GetBool("history")
	version, _ := cmd.Flags().GetInt("version")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	prices, err := s.GetPrice(cmd.Context(), store.GetPriceParams{
		KindID:  args[0],
		History: history,
		Version: version,
	})
	if err != nil {
		exitErr("get", err)
	}

	if textOutput() {
		dim := color.New(color.Faint).SprintFunc()
		for _, p := range prices {
			fmt.Printf("v%-3d %12s  %-6s %s\n", p.Version, formatPrice(p.Price), p.Source, dim(p.ObservedAt.Format("2006-01-02 15:04:05")))
		}
		return
	}
	if history || len(prices) > 1 {
		printJSON(prices)
	} else {
		printJSON(prices[0])
	}
}
