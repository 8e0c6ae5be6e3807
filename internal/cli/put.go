package cli

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rcliao/stash-manager/internal/store"
)

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Manage the local market price book",
}

func init() {
	cmd := &cobra.Command{
		Use:   "put <kind-id> <price>",
		Short: "Record a market price observation",
		Args:  cobra.ExactArgs(2),
		Run:   runPut,
	}

	cmd.Flags().StringP("source", "s", "manual", "Source: manual, import, feed")

	pricesCmd.AddCommand(cmd)
	RootCmd.AddCommand(pricesCmd)
}

func runPut(cmd *cobra.Command, args []string) {
	source, _ := cmd.Flags().GetString("source")

	price, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		exitErr("parse price", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	obs, err := s.PutPrice(cmd.Context(), store.PutPriceParams{
		KindID: args[0],
		Price:  price,
		Source: source,
	})
	if err != nil {
		exitErr("put", err)
	}

	if textOutput() {
		fmt.Printf("%s %s v%d\n", obs.KindID, color.New(color.FgGreen).Sprint(formatPrice(obs.Price)), obs.Version)
		return
	}
	printJSON(obs)
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
