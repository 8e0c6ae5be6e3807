package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/stash-manager/internal/consolidate"
)

func init() {
	cmd := &cobra.Command{
		Use:   "fold",
		Short: "Fold every foldable item in an inventory",
		Run:   runFold,
	}

	addInventoryFlags(cmd)

	RootCmd.AddCommand(cmd)
}

func runFold(cmd *cobra.Command, args []string) {
	path, _ := cmd.Flags().GetString("inventory")
	simulate, _ := cmd.Flags().GetBool("simulate")
	out, _ := cmd.Flags().GetString("out")

	sess := openSession(cmd.Context(), path)
	defer sess.Close()

	rep, err := consolidate.New(sess.exec, logger).FoldAll(cmd.Context(), sess.inv.ModelGrids(), simulate)
	if err != nil {
		keepPartial(out, sess, rep)
		exitErr("fold", err)
	}
	finishConsolidate(out, sess, rep)
}

func finishConsolidate(out string, sess *session, rep consolidate.Report) {
	if err := saveInventory(out, sess.inv); err != nil {
		exitErr("write inventory", err)
	}
	if out != "-" {
		printJSON(rep)
	}
}
