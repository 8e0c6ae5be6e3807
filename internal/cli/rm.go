package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/stash-manager/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm <kind-id>",
		Short: "Delete price observations for a kind",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	cmd.Flags().Bool("all-versions", false, "Delete all versions")
	cmd.Flags().Bool("hard", false, "Permanent delete (irreversible)")

	pricesCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	allVersions, _ := cmd.Flags().GetBool("all-versions")
	hard, _ := cmd.Flags().GetBool("hard")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	err = s.RmPrice(cmd.Context(), store.RmPriceParams{
		KindID:      args[0],
		AllVersions: allVersions,
		Hard:        hard,
	})
	if err != nil {
		exitErr("rm", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"kind_id":%q}`+"\n", args[0])
}
