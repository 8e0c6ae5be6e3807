package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rcliao/stash-manager/internal/store"
)

func init() {
	supplyCmd := &cobra.Command{
		Use:   "supply",
		Short: "Manage what traders pay per item kind",
	}

	put := &cobra.Command{
		Use:   "put <trader-id> <kind-id> <price>",
		Short: "Record the price a trader pays",
		Args:  cobra.ExactArgs(3),
		Run:   runSupplyPut,
	}
	get := &cobra.Command{
		Use:   "get <trader-id>",
		Short: "Show every price a trader pays",
		Args:  cobra.ExactArgs(1),
		Run:   runSupplyGet,
	}

	supplyCmd.AddCommand(put, get)
	RootCmd.AddCommand(supplyCmd)
}

func runSupplyPut(cmd *cobra.Command, args []string) {
	price, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		exitErr("parse price", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	entry, err := s.PutSupply(cmd.Context(), store.PutSupplyParams{
		TraderID: args[0],
		KindID:   args[1],
		Price:    price,
	})
	if err != nil {
		exitErr("supply put", err)
	}
	printJSON(entry)
}

func runSupplyGet(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	entries, err := s.GetSupply(cmd.Context(), args[0])
	if err != nil {
		exitErr("supply get", err)
	}

	if textOutput() {
		for _, e := range entries {
			fmt.Printf("%-32s %12s\n", e.KindID, formatPrice(e.Price))
		}
		return
	}
	printJSON(entries)
}
