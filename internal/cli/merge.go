package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/stash-manager/internal/consolidate"
)

func init() {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge partial stacks of the same kind",
		Run:   runMerge,
	}

	addInventoryFlags(cmd)

	RootCmd.AddCommand(cmd)
}

func runMerge(cmd *cobra.Command, args []string) {
	path, _ := cmd.Flags().GetString("inventory")
	simulate, _ := cmd.Flags().GetBool("simulate")
	out, _ := cmd.Flags().GetString("out")

	sess := openSession(cmd.Context(), path)
	defer sess.Close()

	rep, err := consolidate.New(sess.exec, logger).MergeAll(cmd.Context(), sess.inv.ModelGrids(), simulate)
	if err != nil {
		keepPartial(out, sess, rep)
		exitErr("merge", err)
	}
	finishConsolidate(out, sess, rep)
}
